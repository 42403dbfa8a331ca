package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string][]byte
	err     error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestExporter_Export(t *testing.T) {
	objs := &fakeObjects{objects: map[string][]byte{}}
	e := NewExporterWithAPI(objs, "results", "summaries")

	key, err := e.Export(context.Background(), "job1", map[string]string{"content": "摘要"})
	require.NoError(t, err)
	assert.Equal(t, "summaries/job1.json", key)

	var got map[string]string
	require.NoError(t, json.Unmarshal(objs.objects["results/summaries/job1.json"], &got))
	assert.Equal(t, "摘要", got["content"])

	require.NoError(t, e.Delete(context.Background(), key))
	assert.Empty(t, objs.objects)
}

func TestExporter_Errors(t *testing.T) {
	e := NewExporterWithAPI(&fakeObjects{err: errors.New("denied")}, "b", "")
	_, err := e.Export(context.Background(), "job1", struct{}{})
	assert.ErrorContains(t, err, "denied")

	_, err = e.Export(context.Background(), "job1", func() {})
	assert.Error(t, err)

	_, err = e.DownloadLink(context.Background(), "job1.json", "")
	assert.Error(t, err)
	assert.Equal(t, "job1.json", e.Key("job1"))
}
