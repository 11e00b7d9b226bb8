package daystore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client is an in-memory S3API with a tiny page size to exercise
// continuation tokens.
type mockS3Client struct {
	objects map[string][]byte
	getErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	const pageSize = 2
	end := start + pageSize
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Backend(t *testing.T) {
	client := newMockS3()
	b := NewS3Backend(client, "bucket", "/processed/")
	ctx := context.Background()

	for _, d := range []string{"2026-01-11", "2026-01-13", "2026-01-12"} {
		require.NoError(t, b.Write(ctx, d, []byte(`[]`)))
	}
	client.objects["processed/notes.json"] = []byte("x")
	client.objects["other/2026-01-20.json"] = []byte("[]")

	_, ok := client.objects["processed/2026-01-13.json"]
	assert.True(t, ok)

	dates, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-13", "2026-01-12", "2026-01-11"}, dates)

	data, err := b.Read(ctx, "2026-01-12")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = b.Read(ctx, "2026-02-01")
	assert.True(t, errors.Is(err, ErrDayNotFound))

	client.getErr = errors.New("access denied")
	_, err = b.Read(ctx, "2026-01-12")
	assert.False(t, errors.Is(err, ErrDayNotFound))
	assert.ErrorContains(t, err, "access denied")
}
