package s3docs_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midtown_book/internal/adapters/s3docs"
	"midtown_book/internal/domain"
)

type fakeS3 struct {
	s3iface.S3API
	puts    []*s3.PutObjectInput
	bodies  []string
	deletes []string
	err     error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestPut_UploadsWithGeneratedKey(t *testing.T) {
	fake := &fakeS3{}
	st := s3docs.NewWithClient(fake, "claims-bucket")

	key, err := st.Put(context.Background(), "claims/7", domain.Document{
		Filename: "license.PDF", ContentType: "application/octet-stream", Body: []byte("%PDF-1.4"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "claims/7/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	require.Len(t, fake.puts, 1)
	in := fake.puts[0]
	assert.Equal(t, "claims-bucket", aws.StringValue(in.Bucket))
	assert.Equal(t, "application/pdf", aws.StringValue(in.ContentType))
	assert.Equal(t, "license.PDF", aws.StringValue(in.Metadata["original-name"]))
	assert.Equal(t, "%PDF-1.4", fake.bodies[0])

	require.NoError(t, st.Delete(context.Background(), key))
	assert.Equal(t, []string{key}, fake.deletes)
	require.NoError(t, st.Delete(context.Background(), ""))
	assert.Len(t, fake.deletes, 1)
}

func TestPut_Rejects(t *testing.T) {
	st := s3docs.NewWithClient(&fakeS3{}, "b")
	ctx := context.Background()

	_, err := st.Put(ctx, "claims/1", domain.Document{Filename: "run.exe", ContentType: "application/x-msdownload", Body: []byte("MZ")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = st.Put(ctx, "claims/1", domain.Document{Filename: "empty.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = st.Put(ctx, "claims/1", domain.Document{Filename: "big.png", ContentType: "image/png", Body: make([]byte, s3docs.MaxSize+1)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPut_UploadFailure(t *testing.T) {
	st := s3docs.NewWithClient(&fakeS3{err: errors.New("AccessDenied")}, "b")
	_, err := st.Put(context.Background(), "claims/1", domain.Document{Filename: "a.jpg", ContentType: "image/jpeg", Body: []byte{1}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrValidation)
}
