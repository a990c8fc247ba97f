package apitoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	credentialVersion = "v1"
	randomBytes       = 32
	lookupPrefixLen   = 12
)

// Credential is the parsed form of a raw bearer string.
type Credential struct {
	Raw          string
	LookupPrefix string
}

// credentialPattern is "<product>_v1_" followed by 64 lowercase hex chars.
func credentialPattern(product string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(product) + `_` + credentialVersion + `_[0-9a-f]{64}$`)
}

// Codec generates and parses credentials for one product prefix.
type Codec struct {
	product string
	pattern *regexp.Regexp
}

// NewCodec creates a codec for product (for example "qag").
func NewCodec(product string) *Codec {
	return &Codec{product: product, pattern: credentialPattern(product)}
}

// Generate returns a fresh random credential.
func (c *Codec) Generate() (*Credential, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	random := hex.EncodeToString(buf)
	return &Credential{
		Raw:          c.product + "_" + credentialVersion + "_" + random,
		LookupPrefix: random[:lookupPrefixLen],
	}, nil
}

// Parse checks the structure of raw without touching storage. The lookup
// prefix is a non-secret slice of the random part used to narrow candidates.
func (c *Codec) Parse(raw string) (*Credential, error) {
	if !c.pattern.MatchString(raw) {
		return nil, ErrMalformedCredential
	}
	head := len(c.product) + len(credentialVersion) + 2
	return &Credential{
		Raw:          raw,
		LookupPrefix: raw[head : head+lookupPrefixLen],
	}, nil
}
