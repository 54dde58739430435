package invoice

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("invoiceRow", func() {
	It("should carry every field through the relational shape", func() {
		inv := newTestInvoice("Acme Corp")
		inv.ID = "inv-001"
		inv.CreatedAt = clockStart
		inv.UpdatedAt = clockStart.Add(time.Minute)

		row, err := newInvoiceRow(inv)
		Expect(err).NotTo(HaveOccurred())
		Expect(row.TableName()).To(Equal("invoices"))
		Expect(row.LineItems).To(MatchJSON(`[{"description":"Widget","amount":150}]`))
		Expect(row.PageNumber).To(Equal("[1,2]"))

		back, err := row.invoice()
		Expect(err).NotTo(HaveOccurred())
		Expect(back.ID).To(Equal("inv-001"))
		Expect(back.Vendor).To(Equal("Acme Corp"))
		Expect(back.Total).To(Equal(inv.Total))
		Expect(back.Tax.Valid).To(BeFalse())
		Expect(back.Confidence).To(HaveValue(Equal(0.9)))
		Expect(back.PageNumber).To(Equal([]int{1, 2}))
		Expect(back.UpdatedAt).To(BeTemporally("==", inv.UpdatedAt))
	})

	It("should store nil lists as empty JSON arrays", func() {
		row, err := newInvoiceRow(&Invoice{})
		Expect(err).NotTo(HaveOccurred())
		Expect(row.LineItems).To(Equal("[]"))
		Expect(row.PageNumber).To(Equal("[]"))

		back, err := row.invoice()
		Expect(err).NotTo(HaveOccurred())
		Expect(back.LineItems).To(Equal([]json.RawMessage{}))
		Expect(back.PageNumber).To(Equal([]int{}))
	})

	It("should reject corrupt list columns", func() {
		row := &invoiceRow{ID: "inv-001", LineItems: "not json", PageNumber: "[]"}
		_, err := row.invoice()
		Expect(err).To(MatchError(ContainSubstring("unmarshaling line items of inv-001")))
	})
})
