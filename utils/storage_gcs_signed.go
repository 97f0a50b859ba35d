package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

// SignedUpload lets a browser PUT a large image straight into the bucket.
type SignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type urlSigner struct {
	accessID   string
	privateKey []byte
	signBytes  func([]byte) ([]byte, error)
}

func SignUpload(ctx context.Context, objectKey, contentType string, expires time.Duration) (*SignedUpload, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	signer, err := resolveSigner(ctx)
	if err != nil {
		return nil, err
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodPut,
		Expires:        time.Now().Add(expires),
		ContentType:    contentType,
		GoogleAccessID: signer.accessID,
		PrivateKey:     signer.privateKey,
		SignBytes:      signer.signBytes,
	}
	signedURL, err := storage.SignedURL(bucket, objectKey, opts)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", objectKey, err)
	}
	return &SignedUpload{
		UploadURL: signedURL,
		Method:    opts.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		ObjectKey: objectKey,
		AccessURL: BuildObjectAccessURL(objectKey),
		ExpiresAt: opts.Expires,
	}, nil
}

// resolveSigner prefers a key from GCS_CREDENTIALS_JSON or GCS_SIGNER_*; otherwise signs through IAM.
func resolveSigner(ctx context.Context) (*urlSigner, error) {
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		var key struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
			return nil, fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
		}
		if key.ClientEmail == "" || key.PrivateKey == "" {
			return nil, errors.New("GCS_CREDENTIALS_JSON missing client_email or private_key")
		}
		return &urlSigner{accessID: key.ClientEmail, privateKey: pemBytes(key.PrivateKey)}, nil
	}

	email := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	if privateKey := strings.TrimSpace(os.Getenv("GCS_SIGNER_PRIVATE_KEY")); email != "" && privateKey != "" {
		return &urlSigner{accessID: email, privateKey: pemBytes(privateKey)}, nil
	}
	if email == "" && metadata.OnGCE() {
		defaultEmail, err := metadata.Email("default")
		if err != nil {
			return nil, fmt.Errorf("default service account email: %w", err)
		}
		email = defaultEmail
	}
	if email == "" {
		return nil, errors.New("GCS_SIGNER_EMAIL is required when no private key is provided")
	}
	return iamSigner(ctx, email)
}

func pemBytes(key string) []byte {
	return []byte(strings.ReplaceAll(key, "\\n", "\n"))
}

func iamSigner(ctx context.Context, email string) (*urlSigner, error) {
	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("load default credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("iamcredentials service: %w", err)
	}
	resource := "projects/-/serviceAccounts/" + email
	return &urlSigner{
		accessID: email,
		signBytes: func(data []byte) ([]byte, error) {
			resp, err := svc.Projects.ServiceAccounts.SignBlob(resource, &iamcredentials.SignBlobRequest{
				Payload: base64.StdEncoding.EncodeToString(data),
			}).Do()
			if err != nil {
				return nil, err
			}
			return base64.StdEncoding.DecodeString(resp.SignedBlob)
		},
	}, nil
}
