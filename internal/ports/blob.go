package ports

import "context"

// BlobWriter guarda objetos inmutables (logs de mano archivados).
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
