package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/hearthlabs/hearth/config"
)

var _ = Describe("Config", func() {
	var cfg *Config

	BeforeEach(func() {
		cfg = DefaultConfig()
	})

	It("carries sensible defaults", func() {
		Expect(cfg.KeepAliveTimeout).To(Equal(90 * time.Second))
		Expect(cfg.MaxHeadBytes).To(Equal(DefaultMaxHeadBytes))
		Expect(cfg.MaxHeaderCount).To(Equal(DefaultMaxHeaderCount))
		Expect(cfg.EnableCompression).To(BeFalse())
		Expect(cfg.EnableHTTP10).To(BeFalse())
		Expect(cfg.ServerHeader).To(Equal(DefaultServerHeader))
	})

	Describe("Initialize", func() {
		It("merges yaml over the defaults", func() {
			var b = []byte(`
keep_alive_timeout: 10s
max_head_bytes: 4096
enable_compression: true
logging:
  level: debug
`)
			Expect(cfg.Initialize(b)).To(Succeed())
			Expect(cfg.Process()).To(Succeed())

			Expect(cfg.KeepAliveTimeout).To(Equal(10 * time.Second))
			Expect(cfg.MaxHeadBytes).To(Equal(4096))
			Expect(cfg.EnableCompression).To(BeTrue())
			Expect(cfg.Logging.Level).To(Equal("debug"))
			// untouched keys keep their defaults
			Expect(cfg.ReadTimeout).To(Equal(30 * time.Second))
		})

		It("rejects malformed yaml", func() {
			Expect(cfg.Initialize([]byte("{invalid"))).NotTo(Succeed())
		})
	})

	Describe("Process", func() {
		It("fills zero limits with defaults", func() {
			cfg.MaxHeadBytes = 0
			cfg.MaxHeaderCount = 0
			cfg.MaxDrainBytes = 0
			Expect(cfg.Process()).To(Succeed())
			Expect(cfg.MaxHeadBytes).To(Equal(DefaultMaxHeadBytes))
			Expect(cfg.MaxHeaderCount).To(Equal(DefaultMaxHeaderCount))
			Expect(cfg.MaxDrainBytes).To(Equal(int64(DefaultDrainBytes)))
		})

		It("rejects negative timeouts", func() {
			cfg.ReadTimeout = -time.Second
			Expect(cfg.Process()).NotTo(Succeed())
		})

		It("rejects a negative request cap", func() {
			cfg.MaxRequestsPerConn = -1
			Expect(cfg.Process()).NotTo(Succeed())
		})
	})

	Describe("InitConfigFromFile", func() {
		It("loads and validates a yaml file", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "hearth.yml")
			Expect(os.WriteFile(path, []byte("read_timeout: 5s\n"), 0600)).To(Succeed())

			loaded, err := InitConfigFromFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ReadTimeout).To(Equal(5 * time.Second))
		})

		It("fails on a missing file", func() {
			_, err := InitConfigFromFile("/nonexistent/hearth.yml")
			Expect(err).To(HaveOccurred())
		})
	})
})
