package config

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, value := range overrides {
		v.Set(key, value)
	}
	return v
}

var _ = Describe("fromViper", func() {
	It("applies defaults", func() {
		cfg, err := fromViper(newViper(nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Port).To(Equal("8080"))
		Expect(cfg.IsDevelopment()).To(BeTrue())
		Expect(cfg.LLM.Enabled()).To(BeFalse())
		Expect(cfg.LLM.MaxConcurrent).To(Equal(5))
		Expect(cfg.LLM.Timeout).To(Equal(15 * time.Second))
		Expect(cfg.DB.ConnMaxLifetime).To(Equal(time.Hour))
	})

	It("rejects an unknown provider", func() {
		_, err := fromViper(newViper(map[string]any{"llm_provider": "cohere"}))
		Expect(err).To(MatchError(ContainSubstring("unknown LLM_PROVIDER")))
	})

	It("requires an API key once a provider is chosen", func() {
		_, err := fromViper(newViper(map[string]any{"llm_provider": "openai"}))
		Expect(err).To(MatchError(ContainSubstring("LLM_API_KEY")))
	})

	It("normalizes the provider name and concurrency floor", func() {
		cfg, err := fromViper(newViper(map[string]any{
			"llm_provider":       "Gemini",
			"llm_api_key":        "k",
			"llm_max_concurrent": 0,
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Provider).To(Equal("gemini"))
		Expect(cfg.LLM.Enabled()).To(BeTrue())
		Expect(cfg.LLM.MaxConcurrent).To(Equal(1))
	})

	It("renders a postgres DSN", func() {
		cfg, err := fromViper(newViper(map[string]any{"db_host": "db.internal", "db_password": "secret"}))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.DB.DSN()).To(Equal("host=db.internal user=pulse password=secret dbname=pulse port=5432 sslmode=prefer TimeZone=UTC"))
	})

	It("reads service toggles", func() {
		cfg, err := fromViper(newViper(map[string]any{"auto_annotate": true, "twitter_token": "tok"}))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AutoAnnotate).To(BeTrue())
		Expect(cfg.TwitterToken).To(Equal("tok"))
	})
})
