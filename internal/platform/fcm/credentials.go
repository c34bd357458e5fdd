package fcm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// CredentialsCheck reports whether an FCM access token can be obtained with
// the credentials the messaging client was built from. An empty
// credentialsFile means application default credentials.
func CredentialsCheck(ctx context.Context, credentialsFile string) func(context.Context) error {
	creds, err := loadCredentials(ctx, credentialsFile)
	if err != nil {
		return func(context.Context) error {
			return fmt.Errorf("fcm credentials unavailable: %w", err)
		}
	}
	return tokenCheck(oauth2.ReuseTokenSource(nil, creds.TokenSource))
}

func loadCredentials(ctx context.Context, credentialsFile string) (*google.Credentials, error) {
	if credentialsFile == "" {
		return google.FindDefaultCredentials(ctx, messagingScope)
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, err
	}
	return google.CredentialsFromJSON(ctx, data, messagingScope)
}

// tokenCheck fetches a token from ts, giving up when ctx ends. Cached tokens
// are served without a network call until they expire.
func tokenCheck(ts oauth2.TokenSource) func(context.Context) error {
	return func(ctx context.Context) error {
		type result struct {
			tok *oauth2.Token
			err error
		}
		done := make(chan result, 1)
		go func() {
			tok, err := ts.Token()
			done <- result{tok, err}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-done:
			if r.err != nil {
				return fmt.Errorf("fcm token refresh failed: %w", r.err)
			}
			if !r.tok.Valid() {
				return errors.New("fcm access token is not valid")
			}
			return nil
		}
	}
}
