// Package b2 is a client for the small part of the Backblaze B2 API needed
// to issue download authorizations: account authorization, bucket listing,
// and download-authorization issuance.
//
// Calls are mediated through an Account, which wraps the account-level
// token and API host returned by b2_authorize_account:
//
//	c := &b2.Client{}
//	acct, err := c.AuthorizeAccount(ctx, "key-id", "key")
//	if err != nil {
//	  return err
//	}
//	auth, err := acct.GetDownloadAuthorization(ctx, bucketID, "", 30*time.Minute)
//
// It does not wrap upload, delete, or file listing; object transfer is
// left to whatever performs the download.
package b2
