package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-scanner/internal/extraction"
)

var _ = Describe("Config", func() {
	Describe("parseConfig", func() {
		It("should apply defaults", func() {
			cfg, _, err := parseConfig(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(8080))
			Expect(cfg.Engine).To(Equal("azure"))
			Expect(cfg.AzureAPIVersion).To(Equal(extraction.DefaultAPIVersion))
			Expect(cfg.DefaultModel).To(Equal(extraction.ModelInvoice))
			Expect(cfg.PollInterval).To(Equal(time.Second))
			Expect(cfg.MaxWait).To(Equal(2 * time.Minute))
			Expect(cfg.Store).To(Equal("bolt"))
			Expect(cfg.MaxUploadMB).To(Equal(50))
			Expect(cfg.Enhance).To(BeFalse())
			Expect(cfg.ShowVersion).To(BeFalse())
		})

		It("should read flags", func() {
			cfg, _, err := parseConfig([]string{
				"--engine", "ollama",
				"--store", "sqlite",
				"--db", "/tmp/x.sqlite",
				"--poll-interval", "250ms",
				"--enhance",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Engine).To(Equal("ollama"))
			Expect(cfg.Store).To(Equal("sqlite"))
			Expect(cfg.DBPath).To(Equal("/tmp/x.sqlite"))
			Expect(cfg.PollInterval).To(Equal(250 * time.Millisecond))
			Expect(cfg.Enhance).To(BeTrue())
		})

		It("should read prefixed environment variables", func() {
			GinkgoT().Setenv("INVOICE_SCANNER_AZURE_ENDPOINT", "https://example.cognitiveservices.azure.com")
			GinkgoT().Setenv("INVOICE_SCANNER_AZURE_KEY", "env-key")
			GinkgoT().Setenv("INVOICE_SCANNER_MAX_WAIT", "30s")

			cfg, _, err := parseConfig(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.AzureEndpoint).To(Equal("https://example.cognitiveservices.azure.com"))
			Expect(cfg.AzureKey).To(Equal("env-key"))
			Expect(cfg.MaxWait).To(Equal(30 * time.Second))
		})

		It("should let flags win over the environment", func() {
			GinkgoT().Setenv("INVOICE_SCANNER_PORT", "9000")
			cfg, _, err := parseConfig([]string{"--port", "9100"})
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(9100))
		})

		It("should read the version flag", func() {
			cfg, _, err := parseConfig([]string{"--version"})
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ShowVersion).To(BeTrue())
		})

		It("should reject unknown flags", func() {
			_, _, err := parseConfig([]string{"--nope"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Validate", func() {
		var cfg *Config

		BeforeEach(func() {
			var err error
			cfg, _, err = parseConfig([]string{
				"--azure-endpoint", "https://example.cognitiveservices.azure.com",
				"--azure-key", "secret",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept a complete azure configuration", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		DescribeTable("invalid configurations",
			func(mutate func(c *Config), message string) {
				mutate(cfg)
				Expect(cfg.Validate()).To(MatchError(ContainSubstring(message)))
			},
			Entry("missing azure key", func(c *Config) { c.AzureKey = "" }, "--azure-key is required"),
			Entry("missing azure endpoint", func(c *Config) { c.AzureEndpoint = "" }, "--azure-endpoint is required"),
			Entry("missing gemini key", func(c *Config) { c.Engine = "gemini" }, "--gemini-key is required"),
			Entry("unknown engine", func(c *Config) { c.Engine = "tesseract" }, `invalid engine "tesseract"`),
			Entry("unknown store", func(c *Config) { c.Store = "redis" }, `invalid store "redis"`),
			Entry("postgres without dsn", func(c *Config) { c.Store = "postgres" }, "--postgres-dsn is required"),
			Entry("unknown model", func(c *Config) { c.DefaultModel = "prebuilt-tax" }, `invalid model "prebuilt-tax"`),
			Entry("bad port", func(c *Config) { c.Port = 70000 }, "invalid port 70000"),
			Entry("max wait below poll interval", func(c *Config) { c.MaxWait = time.Millisecond }, "--max-wait"),
			Entry("bad log level", func(c *Config) { c.LogLevel = "loud" }, `invalid log level "loud"`),
			Entry("bad log format", func(c *Config) { c.LogFormat = "xml" }, `invalid log format "xml"`),
		)

		It("should report every problem at once", func() {
			cfg.AzureKey = ""
			cfg.Store = "redis"
			err := cfg.Validate()
			Expect(err).To(MatchError(ContainSubstring("--azure-key")))
			Expect(err).To(MatchError(ContainSubstring("invalid store")))
		})
	})

	Describe("newLogger", func() {
		It("should write JSON at the configured level", func() {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, "json", "warn")
			Expect(err).NotTo(HaveOccurred())

			logger.Info("hidden")
			logger.Warn("shown", "invoice_id", "inv-001")

			var entry map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
			Expect(entry).To(HaveKeyWithValue("msg", "shown"))
			Expect(entry).To(HaveKeyWithValue("invoice_id", "inv-001"))
			Expect(entry).To(HaveKeyWithValue("level", slog.LevelWarn.String()))
		})

		It("should write text by default", func() {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, "text", "debug")
			Expect(err).NotTo(HaveOccurred())
			logger.Debug("details")
			Expect(buf.String()).To(ContainSubstring("msg=details"))
		})
	})
})
