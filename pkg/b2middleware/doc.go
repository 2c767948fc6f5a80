// Package b2middleware produces temporary, authorized download requests for
// objects held in Backblaze B2 or AWS S3.
//
// A Dispatcher receives the request description a package manager is about
// to fetch (a URL plus extra headers) and routes it through zero or more
// Authorizers. Two authorizers are provided under subpackages:
//
//   - b2auth.Manager rewrites b2 marker URLs (scheme://b2/<bucket>/<path>)
//     into download URLs and attaches a cached, short-lived download
//     authorization token, refreshing the token from the B2 API when the
//     cached one has expired.
//   - sigv4.Signer attaches AWS Signature Version 4 headers to URLs whose
//     host belongs to the configured S3 endpoint. s3presign.Authorizer is
//     the alternative that rewrites such URLs to presigned URLs instead.
//
// Authorization failures never abort the outer request. The dispatcher logs
// the failure and leaves the request untouched, so the download proceeds
// unauthenticated and the provider decides.
//
// Token state survives process restarts through a PreferenceStore. Memory,
// SQLite and Postgres implementations live under prefs/.
package b2middleware
