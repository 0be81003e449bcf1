package protocol

import "crypto/md5"

const hashAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// SofiaHash computes the vendor password digest used for login and
// change-password requests: MD5 the UTF-8 password, then for each of the
// eight adjacent byte pairs emit one alphabet character indexed by the pair's
// sum modulo 62. The result is always 8 ASCII characters.
func SofiaHash(password string) string {
	sum := md5.Sum([]byte(password))
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		s := int(sum[2*i]) + int(sum[2*i+1])
		out[i] = hashAlphabet[s%62]
	}
	return string(out)
}
