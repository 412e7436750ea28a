package uploadsservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kgellert/portal-chat/internal/uploads"
)

type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func New(bucket string, client ObjectGetter, defaultAvatar string) uploads.Service {
	defaultKey, err := uploads.KeyFromURLPath(defaultAvatar)
	if err != nil {
		defaultKey = ""
	}

	return &service{bucket: bucket, client: client, defaultKey: defaultKey}
}

type service struct {
	bucket     string
	client     ObjectGetter
	defaultKey string
}

// Open streams uploads/<path> from the bucket. A missing object falls back
// to the default avatar so broken profile references still render.
func (s *service) Open(ctx context.Context, path string) (uploads.Object, error) {
	const op = "uploads.service.Open"

	key, err := uploads.ObjectKey(path)
	if err != nil {
		return uploads.Object{}, fmt.Errorf("%s: %w", op, err)
	}

	obj, err := s.get(ctx, key)
	if errors.Is(err, uploads.ErrObjectNotFound) && s.defaultKey != "" && key != s.defaultKey {
		obj, err = s.get(ctx, s.defaultKey)
	}
	if err != nil {
		return uploads.Object{}, fmt.Errorf("%s: %w", op, err)
	}

	return obj, nil
}

func (s *service) get(ctx context.Context, key string) (uploads.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return uploads.Object{}, fmt.Errorf("%s: %w", key, uploads.ErrObjectNotFound)
		}
		return uploads.Object{}, fmt.Errorf("get %s: %w", key, err)
	}

	obj := uploads.Object{Body: out.Body}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		obj.ContentLength = *out.ContentLength
	}

	return obj, nil
}
