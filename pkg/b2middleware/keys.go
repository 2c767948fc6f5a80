package b2middleware

// DefaultDomain is the preference domain the keys below are read from and
// written to unless configured otherwise.
const DefaultDomain = "ManagedInstalls"

// Preference keys.
const (
	KeyB2AccountID      = "B2AccountID"
	KeyB2ApplicationKey = "B2ApplicationKey"
	KeyB2ValidDuration  = "B2ValidDuration"

	// Credential cache. Written together by SetAll after a refresh.
	KeyB2ExpirationDate             = "B2ExpirationDate"
	KeyB2DownloadURL                = "B2DownloadURL"
	KeyB2DownloadAuthorizationToken = "B2DownloadAuthorizationToken"

	KeyS3AccessKey = "AccessKey"
	KeyS3SecretKey = "SecretKey"
	KeyS3Region    = "Region"
	KeyS3Endpoint  = "S3Endpoint"
)

// Defaults for optional preferences.
const (
	DefaultValidDurationSeconds = 1800
	DefaultS3Endpoint           = "s3.amazonaws.com"
)
