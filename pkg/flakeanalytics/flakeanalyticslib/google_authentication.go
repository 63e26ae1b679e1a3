package flakeanalyticslib

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	bigQueryScope = "https://www.googleapis.com/auth/bigquery"
	storageScope  = "https://www.googleapis.com/auth/devstorage.read_write"
)

type GoogleAuthenticationFlags struct {
	TokenFileLocation string
	// location of a credential file described by https://cloud.google.com/docs/authentication/production
	GoogleServiceAccountCredentialFile string
	GoogleOAuthClientCredentialFile    string
}

func NewGoogleAuthenticationFlags() *GoogleAuthenticationFlags {
	tokenDir := os.Getenv("HOME")
	if len(tokenDir) == 0 {
		tokenDir = "./"
	}
	return &GoogleAuthenticationFlags{
		TokenFileLocation: filepath.Join(tokenDir, "gcp-token.json"),
	}
}

func (f *GoogleAuthenticationFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.GoogleServiceAccountCredentialFile, "google-service-account-credential-file", f.GoogleServiceAccountCredentialFile, "location of a credential file described by https://cloud.google.com/docs/authentication/production")
	fs.StringVar(&f.GoogleOAuthClientCredentialFile, "google-oauth-credential-file", f.GoogleOAuthClientCredentialFile, "location of an OAuth client credential file; the token obtained for it is cached in --google-token-file")
	fs.StringVar(&f.TokenFileLocation, "google-token-file", f.TokenFileLocation, "where the OAuth token for --google-oauth-credential-file is cached")
}

func (f *GoogleAuthenticationFlags) Validate() error {
	if len(f.GoogleServiceAccountCredentialFile) == 0 && len(f.GoogleOAuthClientCredentialFile) == 0 {
		return fmt.Errorf("one of --google-service-account-credential-file or --google-oauth-credential-file must be specified")
	}
	return nil
}

// clientOption authenticates either with the service account or with a cached
// OAuth token for the given scope.
func (f *GoogleAuthenticationFlags) clientOption(ctx context.Context, scope string) (option.ClientOption, error) {
	if len(f.GoogleServiceAccountCredentialFile) > 0 {
		return option.WithCredentialsFile(f.GoogleServiceAccountCredentialFile), nil
	}

	raw, err := os.ReadFile(f.GoogleOAuthClientCredentialFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read --google-oauth-credential-file: %w", err)
	}
	config, err := google.ConfigFromJSON(raw, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse --google-oauth-credential-file: %w", err)
	}
	token, err := f.getToken(ctx, config)
	if err != nil {
		return nil, err
	}
	return option.WithTokenSource(config.TokenSource(ctx, token)), nil
}

func (f *GoogleAuthenticationFlags) NewBigQueryClient(ctx context.Context, projectID string) (*bigquery.Client, error) {
	opt, err := f.clientOption(ctx, bigQueryScope)
	if err != nil {
		return nil, err
	}
	return bigquery.NewClient(ctx, projectID, opt)
}

func (f *GoogleAuthenticationFlags) NewGCSClient(ctx context.Context) (*storage.Client, error) {
	opt, err := f.clientOption(ctx, storageScope)
	if err != nil {
		return nil, err
	}
	return storage.NewClient(ctx, opt)
}

// getToken reads the cached token, running the interactive authorization flow
// and caching its result when there is none.
func (f *GoogleAuthenticationFlags) getToken(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	if token, err := tokenFromFile(f.TokenFileLocation); err == nil {
		return token, nil
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code: \n%v\n", authURL)
	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	token, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := saveToken(f.TokenFileLocation, token); err != nil {
		logrus.WithError(err).Warn("Unable to cache OAuth token.")
	}
	return token, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

func saveToken(path string, token *oauth2.Token) error {
	logrus.Infof("Saving credential file to: %s", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
