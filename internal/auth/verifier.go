package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Identity is what an external identity provider vouches for.
type Identity struct {
	UID         string
	PhoneNumber string
}

type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

var errNoPhone = stderrors.New("phone number not found in token")

type FirebaseConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	PrivateKeyID string `mapstructure:"private_key_id"`
	PrivateKey   string `mapstructure:"private_key"`
	ClientEmail  string `mapstructure:"client_email"`
	ClientID     string `mapstructure:"client_id"`
	// CredentialsFile, when set, is used instead of the inline service account fields.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// FirebaseVerifier verifies Firebase ID tokens issued after phone sign-in.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context, c FirebaseConfig) (*FirebaseVerifier, error) {
	var opt option.ClientOption
	if c.CredentialsFile != "" {
		opt = option.WithCredentialsFile(c.CredentialsFile)
	} else {
		b, err := serviceAccountJSON(c)
		if err != nil {
			return nil, err
		}
		opt = option.WithCredentialsJSON(b)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: c.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verify firebase token: %w", err)
	}

	phone, _ := tok.Claims["phone_number"].(string)
	if phone == "" {
		return nil, errNoPhone
	}

	return &Identity{UID: tok.UID, PhoneNumber: phone}, nil
}

func serviceAccountJSON(c FirebaseConfig) ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":                        "service_account",
		"project_id":                  c.ProjectID,
		"private_key_id":              c.PrivateKeyID,
		"private_key":                 strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		"client_email":                c.ClientEmail,
		"client_id":                   c.ClientID,
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
	})
}

const mockPrefix = "mock:"

// MockVerifier accepts tokens of the form "mock:<phone number>". It is only wired in the test environment.
type MockVerifier struct{}

func (MockVerifier) VerifyIDToken(_ context.Context, idToken string) (*Identity, error) {
	phone, ok := strings.CutPrefix(idToken, mockPrefix)
	if !ok {
		return nil, stderrors.New("invalid mock token")
	}
	if phone == "" {
		return nil, errNoPhone
	}

	return &Identity{UID: idToken, PhoneNumber: phone}, nil
}
