package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureConfig configures an Azure Blob Storage store. ConnectionString takes
// precedence over account name and key.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ServiceURL       string // optional, defaults to https://<account>.blob.core.windows.net
	ConnectionString string
}

// azureAPI is the subset of the azblob client used by AzureStore.
type azureAPI interface {
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureStore reads and writes blobs. The location container is the blob
// container name.
type AzureStore struct {
	client azureAPI
}

var _ Store = (*AzureStore)(nil)

// NewAzureStore creates a store authenticated with a shared key or a
// connection string.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
		return &AzureStore{client: client}, nil
	}

	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("Azure account name and key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

func (s *AzureStore) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, loc.Container, loc.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", loc, classifyAzureError(err))
	}
	return resp.Body, nil
}

func (s *AzureStore) Put(ctx context.Context, loc Location, data []byte, contentType string) error {
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.client.UploadBuffer(ctx, loc.Container, loc.Key, bytes.Clone(data), opts); err != nil {
		return fmt.Errorf("upload %s: %w", loc, classifyAzureError(err))
	}
	return nil
}

func classifyAzureError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case respErr.StatusCode == http.StatusForbidden || respErr.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		case respErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return err
	}

	return fmt.Errorf("%w: %w", ErrConnection, err)
}
