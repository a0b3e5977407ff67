// Package pin generates the short numeric admin PIN.
package pin

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of digits in a generated PIN.
const Length = 6

// Generate returns a random 6-digit PIN with leading zeros preserved.
func Generate() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < Length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate PIN: %w", err)
	}
	return fmt.Sprintf("%0*d", Length, n), nil
}
