package qrcodes

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	codePrefix    = "EL"
	codeSuffixLen = 6
	codeSuffixSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateCode returns a pass code shaped EL-<base36 millis>-<6 random>.
func GenerateCode(now time.Time) (string, error) {
	suffix := make([]byte, codeSuffixLen)
	max := big.NewInt(int64(len(codeSuffixSet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		suffix[i] = codeSuffixSet[n.Int64()]
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return codePrefix + "-" + stamp + "-" + string(suffix), nil
}
