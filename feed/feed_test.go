package feed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/autom8ter/notify/feed"
	"github.com/autom8ter/notify/store/inmem"
)

func TestBuildStreamOpts(t *testing.T) {
	t.Run("empty checkpoint is a no-op", func(t *testing.T) {
		opts, err := feed.BuildStreamOpts(feed.ResumeData{})
		assert.NoError(t, err)
		assert.Nil(t, opts.ResumeAfter)
		assert.Nil(t, opts.StartAtOperationTime)
	})
	t.Run("resume token wins over cluster time", func(t *testing.T) {
		opts, err := feed.BuildStreamOpts(feed.ResumeData{
			ResumeToken: "8264BEB9F3000000012B0229296E04",
			ClusterTime: "1690000000:1",
		})
		assert.NoError(t, err)
		assert.Equal(t, bson.M{"_data": "8264BEB9F3000000012B0229296E04"}, opts.ResumeAfter)
		assert.Nil(t, opts.StartAtOperationTime)
	})
	t.Run("cluster time alone resumes from operation time", func(t *testing.T) {
		opts, err := feed.BuildStreamOpts(feed.ResumeData{ClusterTime: "1690000000:7"})
		assert.NoError(t, err)
		assert.Nil(t, opts.ResumeAfter)
		assert.Equal(t, &primitive.Timestamp{T: 1690000000, I: 7}, opts.StartAtOperationTime)
	})
	t.Run("malformed cluster time", func(t *testing.T) {
		_, err := feed.BuildStreamOpts(feed.ResumeData{ClusterTime: "not a timestamp"})
		assert.NotNil(t, err)
	})
}

func TestClusterTimeRoundTrip(t *testing.T) {
	ts := primitive.Timestamp{T: 1690000000, I: 42}
	encoded := feed.EncodeClusterTime(ts)
	decoded, err := feed.DecodeClusterTime(encoded)
	assert.NoError(t, err)
	assert.Equal(t, ts, decoded)
	assert.Equal(t, "", feed.EncodeClusterTime(primitive.Timestamp{}))
}

func TestCheckpoints(t *testing.T) {
	ctx := context.Background()
	checkpoints := feed.NewCheckpoints(inmem.New())
	t.Run("missing checkpoint is empty", func(t *testing.T) {
		resume, err := checkpoints.Get(ctx, "mydb", "myname1")
		assert.NoError(t, err)
		assert.True(t, resume.Empty())
	})
	t.Run("set then get", func(t *testing.T) {
		want := feed.ResumeData{ResumeToken: "tok-1"}
		assert.Nil(t, checkpoints.Set(ctx, "mydb", "myname1", want))
		got, err := checkpoints.Get(ctx, "mydb", "myname1")
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})
	t.Run("checkpoints are per collection", func(t *testing.T) {
		got, err := checkpoints.Get(ctx, "mydb", "other")
		assert.NoError(t, err)
		assert.True(t, got.Empty())
	})
}
