package he

import (
	"fmt"
	"strings"
)

// Scheme selects the homomorphic encryption scheme backing a Context.
type Scheme int

const (
	BGV Scheme = iota
	BFV
)

func (s Scheme) String() string {
	switch s {
	case BGV:
		return "bgv"
	case BFV:
		return "bfv"
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// SchemeString parses a scheme name, case-insensitively.
func SchemeString(s string) (Scheme, error) {
	switch strings.ToLower(s) {
	case "bgv", "":
		return BGV, nil
	case "bfv":
		return BFV, nil
	}
	return BGV, fmt.Errorf("unknown homomorphic scheme %q, expected bgv|bfv", s)
}

// Config is the externally supplied parameter set of an encryption context.
// Client and server must be provisioned with identical configs.
type Config struct {
	Scheme           string `json:"scheme"`
	LogN             int    `json:"logN"`
	LogQ             []int  `json:"logQ"`
	LogP             []int  `json:"logP"`
	PlaintextModulus uint64 `json:"plaintextModulus"`
}

// DefaultConfig returns a BGV parameter set with N = 2^13 and three 54-bit
// ciphertext primes, enough for two PIR dimensions.
func DefaultConfig() Config {
	return Config{
		Scheme:           BGV.String(),
		LogN:             13,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{55},
		PlaintextModulus: 65537,
	}
}

// WithDefaults fills in unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Scheme == "" {
		c.Scheme = def.Scheme
	}
	if c.LogN == 0 {
		c.LogN = def.LogN
	}
	if len(c.LogQ) == 0 {
		c.LogQ = def.LogQ
	}
	if len(c.LogP) == 0 {
		c.LogP = def.LogP
	}
	if c.PlaintextModulus == 0 {
		c.PlaintextModulus = def.PlaintextModulus
	}
	return c
}

func (c Config) String() string {
	return fmt.Sprintf("%s/logN=%d,logQ=%v,logP=%v,t=%d", c.Scheme, c.LogN, c.LogQ, c.LogP, c.PlaintextModulus)
}

// Equal reports whether two configs describe the same parameter set.
func (c Config) Equal(o Config) bool {
	c, o = c.WithDefaults(), o.WithDefaults()
	if !strings.EqualFold(c.Scheme, o.Scheme) || c.LogN != o.LogN || c.PlaintextModulus != o.PlaintextModulus {
		return false
	}
	return intsEqual(c.LogQ, o.LogQ) && intsEqual(c.LogP, o.LogP)
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
