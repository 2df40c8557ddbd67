package sources

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string]string
	err     error
	gotKey  string
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.gotKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(body)),
		ETag: aws.String(`"abc"`),
	}, nil
}

func TestS3Loader(t *testing.T) {
	t.Parallel()

	bucket := &fakeBucket{objects: map[string]string{
		"catalogs/prod/catalog.json": `{"entities":[{"uid":"tool-1","type":"tool","name":"T","version":"1.0.0"}]}`,
		"catalogs/prod/broken.yaml":  "entities: [{uid: a}]",
	}}

	loader, err := newS3Loader(bucket, S3Location{Bucket: "catalogs", Key: "prod/catalog.json"})
	require.NoError(t, err)
	assert.Equal(t, "s3://catalogs/prod/catalog.json", loader.Source())

	entities, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "tool-1", entities[0].UID)
	assert.Equal(t, "catalogs/prod/catalog.json", bucket.gotKey)

	broken, err := newS3Loader(bucket, S3Location{Bucket: "catalogs", Key: "prod/broken.yaml"})
	require.NoError(t, err)
	_, err = broken.Load(context.Background())
	assert.ErrorContains(t, err, "does not match schema")

	missing, err := newS3Loader(bucket, S3Location{Bucket: "catalogs", Key: "nope.yaml"})
	require.NoError(t, err)
	_, err = missing.Load(context.Background())
	assert.EqualError(t, err, "catalog object not found: s3://catalogs/nope.yaml")
}

func TestS3Loader_ClientError(t *testing.T) {
	t.Parallel()

	denied := errors.New("access denied")
	loader, err := newS3Loader(&fakeBucket{err: denied}, S3Location{Bucket: "b", Key: "c.yaml"})
	require.NoError(t, err)

	_, err = loader.Load(context.Background())
	require.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "s3://b/c.yaml")
}

func TestNewS3Loader_RequiresLocation(t *testing.T) {
	t.Parallel()

	_, err := NewS3Loader(context.Background(), S3Location{Bucket: "b"})
	assert.EqualError(t, err, "bucket and key are required")
}
