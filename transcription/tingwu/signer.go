package tingwu

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicememo/transcription"
)

const (
	signatureAlgorithm = "ACS3-HMAC-SHA256"
	apiVersion         = "2023-09-30"
	dateLayout         = "2006-01-02T15:04:05Z"
)

// Signer implements Aliyun ACS3-HMAC-SHA256 request signing.
type Signer struct {
	AccessKeyID     string
	AccessKeySecret string
	// Now and Nonce are overridable for deterministic signatures.
	Now   func() time.Time
	Nonce func() string
}

// Sign sets the x-acs-* headers, Content-Type and Authorization on req.
// body is the exact payload that will be sent.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	if s.AccessKeyID == "" || s.AccessKeySecret == "" {
		return transcription.InvalidCredentials()
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	nonce := uuid.NewString
	if s.Nonce != nil {
		nonce = s.Nonce
	}

	sum := sha256.Sum256(body)
	contentSHA := hex.EncodeToString(sum[:])

	headers := map[string]string{
		"content-type":           "application/json",
		"host":                   req.URL.Host,
		"x-acs-content-sha256":   contentSHA,
		"x-acs-date":             now().UTC().Format(dateLayout),
		"x-acs-signature-method": signatureAlgorithm,
		"x-acs-signature-nonce":  nonce(),
		"x-acs-version":          apiVersion,
	}
	if action := req.Header.Get("x-acs-action"); action != "" {
		headers["x-acs-action"] = action
	}

	uri := req.URL.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	canonical := BuildCanonicalRequest(req.Method, uri, CanonicalQuery(req.URL.Query()), headers, contentSHA)
	signature := Signature(s.AccessKeySecret, canonical)

	for k, v := range headers {
		if k == "host" {
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", signatureAlgorithm+
		" Credential="+s.AccessKeyID+
		",SignedHeaders="+signedHeaders(headers)+
		",Signature="+signature)
	return nil
}

// BuildCanonicalRequest assembles the canonical request string. Header
// names must already be lower case; values are signed exactly as given.
func BuildCanonicalRequest(method, uri, query string, headers map[string]string, contentSHA string) string {
	keys := sortedKeys(headers)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + ":" + headers[k]
	}
	return method + "\n" +
		uri + "\n" +
		query + "\n" +
		strings.Join(lines, "\n") + "\n\n" +
		strings.Join(keys, ";") + "\n" +
		contentSHA
}

// Signature computes the hex HMAC-SHA256 of the string to sign derived from
// a canonical request.
func Signature(secret, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	stringToSign := signatureAlgorithm + "\n" + hex.EncodeToString(sum[:])
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// CanonicalQuery percent-encodes and sorts query pairs by key, then value.
func CanonicalQuery(values url.Values) string {
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range values {
		if len(vs) == 0 {
			pairs = append(pairs, pair{PercentEncode(k), ""})
			continue
		}
		for _, v := range vs {
			pairs = append(pairs, pair{PercentEncode(k), PercentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// PercentEncode escapes every byte outside ALPHA / DIGIT / "-_.~".
func PercentEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func signedHeaders(headers map[string]string) string {
	return strings.Join(sortedKeys(headers), ";")
}
