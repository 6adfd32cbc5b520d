package seq

import "strings"

// ToUpper upper-cases a nucleotide string. It is a thin wrapper over
// strings.ToUpper kept as its own function because every caller in this
// package and its siblings (cstag, mutate) needs the same ASCII-only
// semantics and none needs locale awareness.
func ToUpper(s string) string { return strings.ToUpper(s) }

// ToLower lower-cases a nucleotide string.
func ToLower(s string) string { return strings.ToLower(s) }

var complement = [256]byte{}

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	pairs := []struct{ a, b byte }{
		{'A', 'T'}, {'T', 'A'}, {'C', 'G'}, {'G', 'C'},
		{'a', 't'}, {'t', 'a'}, {'c', 'g'}, {'g', 'c'},
		{'N', 'N'}, {'n', 'n'},
	}
	for _, p := range pairs {
		complement[p.a] = p.b
	}
}

// ReverseComplement returns the reverse complement of seq, mapping
// A/C/G/T (either case, case kept) to T/G/C/A, N/n to itself, and
// everything else to 'N'.
func ReverseComplement(s string) string {
	n := len(s)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = complement[s[i]]
	}
	return string(out)
}
