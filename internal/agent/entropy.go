package agent

import (
	"encoding/hex"
	"math"
)

// ShannonEntropy computes byte-level Shannon entropy in bits per byte
// (0–8). Encrypted or compressed content sits near the top of the
// range.
func ShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// HexDump returns the hex encoding of at most n leading bytes.
func HexDump(data []byte, n int) string {
	if n <= 0 || n > len(data) {
		n = len(data)
	}
	return hex.EncodeToString(data[:n])
}
