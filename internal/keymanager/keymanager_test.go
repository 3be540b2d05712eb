package keymanager_test

import (
	"bytes"
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/secure-payments/internal/keymanager"
)

var _ = Describe("LocalKeyManager", func() {
	var (
		ctx  context.Context
		keys *keymanager.LocalKeyManager
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		keys, err = keymanager.NewLocalKeyManager("payments-key", bytes.Repeat([]byte{7}, 32))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should round trip a value", func() {
		ciphertext, err := keys.Encrypt(ctx, []byte("12345678"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ciphertext).To(HavePrefix("v1.payments-key."))
		Expect(ciphertext).NotTo(ContainSubstring("12345678"))

		plaintext, err := keys.Decrypt(ctx, ciphertext)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(plaintext)).To(Equal("12345678"))
	})

	It("should produce different ciphertext for the same value", func() {
		first, err := keys.Encrypt(ctx, []byte("same"))
		Expect(err).NotTo(HaveOccurred())
		second, err := keys.Encrypt(ctx, []byte("same"))
		Expect(err).NotTo(HaveOccurred())
		Expect(first).NotTo(Equal(second))
	})

	It("should refuse ciphertext from another key", func() {
		other, err := keymanager.NewLocalKeyManager("other-key", bytes.Repeat([]byte{9}, 32))
		Expect(err).NotTo(HaveOccurred())

		ciphertext, err := other.Encrypt(ctx, []byte("secret"))
		Expect(err).NotTo(HaveOccurred())

		_, err = keys.Decrypt(ctx, ciphertext)
		Expect(err).To(MatchError(keymanager.ErrKeyMismatch))
	})

	It("should reject a relabelled envelope", func() {
		other, err := keymanager.NewLocalKeyManager("other-key", bytes.Repeat([]byte{7}, 32))
		Expect(err).NotTo(HaveOccurred())

		ciphertext, err := other.Encrypt(ctx, []byte("secret"))
		Expect(err).NotTo(HaveOccurred())
		relabelled := strings.Replace(ciphertext, "other-key", "payments-key", 1)

		_, err = keys.Decrypt(ctx, relabelled)
		Expect(err).To(MatchError(keymanager.ErrMalformedCiphertext))
	})

	It("should reject malformed input", func() {
		_, err := keys.Decrypt(ctx, "not-an-envelope")
		Expect(err).To(MatchError(keymanager.ErrMalformedCiphertext))

		_, err = keys.Decrypt(ctx, "v1.payments-key.!!!")
		Expect(err).To(MatchError(keymanager.ErrMalformedCiphertext))
	})

	It("should honour a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := keys.Encrypt(cancelled, []byte("x"))
		Expect(err).To(MatchError(context.Canceled))
	})

	It("should reject bad key material", func() {
		_, err := keymanager.NewLocalKeyManager("k", []byte("short"))
		Expect(err).To(HaveOccurred())

		_, err = keymanager.NewLocalKeyManager("a.b", bytes.Repeat([]byte{1}, 32))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Scoped", func() {
	var keys *keymanager.LocalKeyManager

	BeforeEach(func() {
		var err error
		keys, err = keymanager.NewLocalKeyManager("payments-key", bytes.Repeat([]byte{3}, 32))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should apply least-privilege defaults", func() {
		scoped := keymanager.NewScoped(keys, nil)

		_, ok := scoped.Encrypter(keymanager.OpCreate)
		Expect(ok).To(BeTrue())
		_, ok = scoped.Decrypter(keymanager.OpCreate)
		Expect(ok).To(BeTrue())

		_, ok = scoped.Encrypter(keymanager.OpGet)
		Expect(ok).To(BeFalse())
		_, ok = scoped.Decrypter(keymanager.OpGet)
		Expect(ok).To(BeTrue())

		_, ok = scoped.Decrypter(keymanager.OpList)
		Expect(ok).To(BeFalse())
		_, ok = scoped.Decrypter(keymanager.OpApprove)
		Expect(ok).To(BeFalse())
	})

	It("should parse configured grants", func() {
		grants, err := keymanager.ParseGrants(map[string][]string{
			"create": {"encrypt"},
			"get":    {},
		})
		Expect(err).NotTo(HaveOccurred())

		scoped := keymanager.NewScoped(keys, grants)
		_, ok := scoped.Decrypter(keymanager.OpGet)
		Expect(ok).To(BeFalse())
		_, ok = scoped.Encrypter(keymanager.OpCreate)
		Expect(ok).To(BeTrue())
	})

	It("should reject unknown grant entries", func() {
		_, err := keymanager.ParseGrants(map[string][]string{"delete": {"decrypt"}})
		Expect(err).To(HaveOccurred())

		_, err = keymanager.ParseGrants(map[string][]string{"get": {"sign"}})
		Expect(err).To(HaveOccurred())
	})
})
