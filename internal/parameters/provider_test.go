package parameters_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/secure-payments/internal/parameters"
)

// fakeRedis overrides only the commands the source uses.
type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	err    error
	gets   int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

var names = parameters.Names{
	MaskPattern: "/secure-payments/test/MASK_PATTERN",
	MaxAmount:   "/secure-payments/test/MAX_AMOUNT",
}

var _ = Describe("Provider", func() {
	var (
		ctx    context.Context
		client *fakeRedis
		source *parameters.RedisSource
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = newFakeRedis()
		source = parameters.NewRedisSource(client)
		Expect(source.Set(ctx, names.MaskPattern, "****-####")).To(Succeed())
		Expect(source.Set(ctx, names.MaxAmount, "100000")).To(Succeed())
	})

	Describe("reading values", func() {
		It("should return the mask pattern and max amount", func() {
			provider := parameters.NewProvider(source, names, 0)

			pattern, err := provider.MaskPattern(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pattern).To(Equal("****-####"))

			maxAmount, err := provider.MaxAmount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(maxAmount).To(Equal(int64(100000)))
		})

		It("should report a missing entry", func() {
			delete(client.values, names.MaxAmount)
			provider := parameters.NewProvider(source, names, 0)

			_, err := provider.MaxAmount(ctx)
			Expect(err).To(MatchError(parameters.ErrNotFound))
		})

		It("should reject a non numeric max amount", func() {
			client.values[names.MaxAmount] = "lots"
			provider := parameters.NewProvider(source, names, 0)

			_, err := provider.MaxAmount(ctx)
			Expect(err).To(MatchError(parameters.ErrInvalidValue))
		})

		It("should reject an empty mask pattern", func() {
			client.values[names.MaskPattern] = ""
			provider := parameters.NewProvider(source, names, 0)

			_, err := provider.MaskPattern(ctx)
			Expect(err).To(MatchError(parameters.ErrInvalidValue))
		})

		It("should surface source failures", func() {
			client.err = errors.New("connection refused")
			provider := parameters.NewProvider(source, names, 0)

			_, err := provider.MaskPattern(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("connection refused"))
		})
	})

	Describe("caching", func() {
		It("should re-read on every call when ttl is zero", func() {
			provider := parameters.NewProvider(source, names, 0)

			_, _ = provider.MaxAmount(ctx)
			_, _ = provider.MaxAmount(ctx)
			Expect(client.gets).To(Equal(2))
		})

		It("should serve cached values until the ttl expires", func() {
			now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			provider := parameters.NewProvider(source, names, 10*time.Second).
				WithClock(func() time.Time { return now })

			first, err := provider.MaxAmount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal(int64(100000)))

			client.values[names.MaxAmount] = "500"
			now = now.Add(5 * time.Second)
			cached, err := provider.MaxAmount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cached).To(Equal(int64(100000)))

			now = now.Add(6 * time.Second)
			refreshed, err := provider.MaxAmount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed).To(Equal(int64(500)))
			Expect(client.gets).To(Equal(2))
		})

		It("should drop cached values on Invalidate", func() {
			provider := parameters.NewProvider(source, names, time.Hour)

			_, _ = provider.MaskPattern(ctx)
			client.values[names.MaskPattern] = "##-##"
			provider.Invalidate()

			pattern, err := provider.MaskPattern(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pattern).To(Equal("##-##"))
		})
	})
})

var _ = Describe("FileSource", func() {
	var (
		ctx  context.Context
		path string
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "parameters.yml")
		Expect(os.WriteFile(path, []byte("MASK_PATTERN: \"****-####\"\nMAX_AMOUNT: 250000\n"), 0o600)).To(Succeed())
	})

	It("should resolve entries by their last path segment", func() {
		provider := parameters.NewProvider(parameters.NewFileSource(path), names, 0)

		pattern, err := provider.MaskPattern(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pattern).To(Equal("****-####"))

		maxAmount, err := provider.MaxAmount(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(maxAmount).To(Equal(int64(250000)))
	})

	It("should pick up edits to the file", func() {
		provider := parameters.NewProvider(parameters.NewFileSource(path), names, 0)

		Expect(os.WriteFile(path, []byte("MASK_PATTERN: \"##\"\nMAX_AMOUNT: 10\n"), 0o600)).To(Succeed())

		maxAmount, err := provider.MaxAmount(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(maxAmount).To(Equal(int64(10)))
	})

	It("should report missing entries", func() {
		Expect(os.WriteFile(path, []byte("MASK_PATTERN: \"##\"\n"), 0o600)).To(Succeed())
		provider := parameters.NewProvider(parameters.NewFileSource(path), names, 0)

		_, err := provider.MaxAmount(ctx)
		Expect(err).To(MatchError(parameters.ErrNotFound))
	})
})
