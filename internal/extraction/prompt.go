package extraction

// invoicePrompt is shared by the vision model analyzers
const invoicePrompt = `You are analyzing an invoice or receipt document. Carefully read all text in the image and extract the following information:

1. **docType**: "invoice" if the document is an invoice, "receipt" if it is a till receipt.
2. **vendorName**: The merchant, supplier or business that issued the document.
3. **invoiceDate**: The invoice or transaction date in ISO 8601 format (YYYY-MM-DD).
4. **invoiceTotal**: The final amount due as a number (e.g. 42.75 for $42.75).
5. **currencyCode**: The ISO 4217 currency code of the total (e.g. "USD", "EUR").
6. **totalTax**: The total tax as a number.
7. **paymentTerms**: The payment terms, such as "Net 30".
8. **category**: A short expense category, such as "Utilities", "Travel" or "Office Supplies".
9. **items**: The line items, each with "description", "quantity" and "amount".
10. **confidence**: Your confidence in the extraction, between 0 and 1.

Return ONLY valid JSON in this exact format:
{
  "docType": "invoice",
  "vendorName": "Business Name",
  "invoiceDate": "YYYY-MM-DD",
  "invoiceTotal": 0.00,
  "currencyCode": "USD",
  "totalTax": 0.00,
  "paymentTerms": "Net 30",
  "category": "Utilities",
  "items": [{"description": "Item", "quantity": 1, "amount": 0.00}],
  "confidence": 0.9
}

Important:
- Amounts must be numbers, not strings
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// readPrompt asks only for the text of the document
const readPrompt = `Transcribe all text in this document exactly as it appears, line by line.

Return ONLY valid JSON in this exact format:
{
  "content": "all text of the document"
}

Do not include any text before or after the JSON and do not use markdown code blocks.`

func promptFor(model string) string {
	if model == ModelRead {
		return readPrompt
	}
	return invoicePrompt
}
