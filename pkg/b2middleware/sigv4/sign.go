// Package sigv4 signs single unsigned-body GET requests with AWS Signature
// Version 4 header authentication.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	// Algorithm is the signing algorithm name.
	Algorithm = "AWS4-HMAC-SHA256"

	// Service is the service name in the credential scope.
	Service = "s3"

	// EmptyPayloadHash is the hex SHA-256 digest of an empty body.
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// SignedHeaders lists the headers covered by the signature.
	SignedHeaders = "host;x-amz-date"

	// SignedHeadersWithToken is used instead when the credentials carry a
	// session token.
	SignedHeadersWithToken = "host;x-amz-date;x-amz-security-token"

	amzDateFormat = "20060102T150405Z"
	dateFormat    = "20060102"
	scopeTerm     = "aws4_request"
)

// Header names emitted by Sign.
const (
	HeaderAmzDate       = "x-amz-date"
	HeaderContentSHA256 = "x-amz-content-sha256"
	HeaderAuthorization = "Authorization"
	HeaderSecurityToken = "x-amz-security-token"
)

// Input is everything a signature depends on.
type Input struct {
	AccessKey    string
	SecretKey    string
	// SessionToken is set for temporary credentials. It is sent as
	// x-amz-security-token and covered by the signature.
	SessionToken string
	Region       string
	Service      string // defaults to Service
	Host         string // as sent in the Host header, port included
	Path         string // escaped URL path; empty means "/"
	Time         time.Time
}

// Sign returns the headers authorizing a GET of in.Host + in.Path at in.Time.
// It is deterministic in its input. Sign panics if in.Host is empty.
func Sign(in Input) map[string]string {
	if in.Host == "" {
		panic("sigv4: Sign called with empty host")
	}
	service := in.Service
	if service == "" {
		service = Service
	}
	t := in.Time.UTC()
	amzDate := t.Format(amzDateFormat)
	date := t.Format(dateFormat)

	scope := CredentialScope(date, in.Region, service)
	creq := canonicalRequest(in.Host, in.Path, amzDate, in.SessionToken)
	sts := StringToSign(amzDate, scope, creq)
	sig := hmacSHA256Hex(deriveSigningKey(in.SecretKey, date, in.Region, service), sts)

	headers := map[string]string{
		HeaderAmzDate:       amzDate,
		HeaderContentSHA256: EmptyPayloadHash,
		HeaderAuthorization: Algorithm + " Credential=" + in.AccessKey + "/" + scope +
			", SignedHeaders=" + signedHeaders(in.SessionToken) + ", Signature=" + sig,
	}
	if in.SessionToken != "" {
		headers[HeaderSecurityToken] = in.SessionToken
	}
	return headers
}

// CanonicalRequest builds the canonical request for a body-less GET with no
// query string, signed with a long-term key pair.
func CanonicalRequest(host, path, amzDate string) string {
	return canonicalRequest(host, path, amzDate, "")
}

func signedHeaders(sessionToken string) string {
	if sessionToken != "" {
		return SignedHeadersWithToken
	}
	return SignedHeaders
}

func canonicalRequest(host, path, amzDate, sessionToken string) string {
	if path == "" {
		path = "/"
	}
	var b strings.Builder
	b.WriteString("GET\n")
	b.WriteString(path)
	b.WriteString("\n\n")
	b.WriteString("host:" + strings.TrimSpace(host) + "\n")
	b.WriteString("x-amz-date:" + amzDate + "\n")
	if sessionToken != "" {
		b.WriteString(HeaderSecurityToken + ":" + strings.TrimSpace(sessionToken) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(signedHeaders(sessionToken) + "\n")
	b.WriteString(EmptyPayloadHash)
	return b.String()
}

// CredentialScope returns date/region/service/aws4_request.
func CredentialScope(date, region, service string) string {
	return strings.Join([]string{date, region, service, scopeTerm}, "/")
}

// StringToSign hashes the canonical request into the string that is signed.
func StringToSign(amzDate, scope, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return Algorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(sum[:])
}

func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), date)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, scopeTerm)
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hmacSHA256Hex(key []byte, data string) string {
	return hex.EncodeToString(hmacSHA256(key, data))
}
