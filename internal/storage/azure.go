package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"filedrop/internal/config"
)

// azureStorage keeps drop files as block blobs. A block blob only becomes
// visible when its block list is committed, so Latest never sees a partial upload.
type azureStorage struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureBlob creates a Storage backed by an Azure Blob container. It
// authenticates with DefaultAzureCredential (managed identity, environment or
// CLI login) and creates the container when it does not exist.
func NewAzureBlob(ctx context.Context, cfg config.AzureConfig) (Storage, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure container is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("create container: %w", err)
		}
	}

	return &azureStorage{client: client, container: cfg.Container, prefix: cfg.Prefix}, nil
}

func (a *azureStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ValidateName(name); err != nil {
		return ObjectInfo{}, err
	}

	contentType := opt.ContentType
	cr := &countingReader{r: r}
	resp, err := a.client.UploadStream(ctx, a.container, a.prefix+name, cr, &azblob.UploadStreamOptions{
		BlockSize:   1 << 20,
		Concurrency: 3,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload blob %s: %w", name, err)
	}

	lastModified := time.Now()
	if resp.LastModified != nil {
		lastModified = *resp.LastModified
	}
	return ObjectInfo{
		Name:         name,
		Size:         cr.n,
		ContentType:  contentType,
		LastModified: lastModified,
	}, nil
}

func (a *azureStorage) Latest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	prefix := a.prefix
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var items []ObjectInfo
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, ObjectInfo{}, fmt.Errorf("list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := strings.TrimPrefix(*item.Name, a.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			info := ObjectInfo{Name: name}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					info.Size = *p.ContentLength
				}
				if p.ContentType != nil {
					info.ContentType = *p.ContentType
				}
				if p.LastModified != nil {
					info.LastModified = *p.LastModified
				}
			}
			items = append(items, info)
		}
	}

	info, ok := newest(items)
	if !ok {
		return nil, ObjectInfo{}, ErrEmpty
	}

	resp, err := a.client.DownloadStream(ctx, a.container, a.prefix+info.Name, nil)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("download blob %s: %w", info.Name, err)
	}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	return resp.Body, info, nil
}
