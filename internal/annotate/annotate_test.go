package annotate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liangzhi-data/newspipe/internal/annotate"
	"github.com/liangzhi-data/newspipe/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawDocs(n int) []models.RawNews {
	docs := make([]models.RawNews, n)
	for i := range docs {
		docs[i] = models.RawNews{
			ID:          fmt.Sprintf("doc-%02d", i),
			Source:      "甲媒体",
			Title:       fmt.Sprintf("资讯标题 %02d", i),
			PublishTime: "2020-06-23 10:00:00",
			CrawlTime:   "2020-06-23 12:00:00",
			Content:     "正文",
		}
	}
	return docs
}

type receivedRequest struct {
	Documents []struct {
		Metadata annotate.Metadata `json:"metadata"`
	} `json:"documents"`
	Config struct {
		Name       string   `json:"name"`
		Components []string `json:"components"`
	} `json:"config"`
}

// echoHandler annotates every submitted document with one tag and one entity.
func echoHandler(t *testing.T, calls *atomic.Int32, batchSizes *[]int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req receivedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*batchSizes = append(*batchSizes, len(req.Documents))

		type item struct {
			NAF      *annotate.NAF `json:"naf"`
			Messages []string      `json:"messages"`
		}
		body := make([]item, len(req.Documents))
		for i, doc := range req.Documents {
			body[i] = item{NAF: &annotate.NAF{
				Metadata: doc.Metadata,
				Tags:     []models.Tag{{Name: "人工智能", ConceptName: models.ConceptIndustry}},
				Entities: []models.Entity{{Name: "甲公司"}},
			}}
		}
		json.NewEncoder(w).Encode(map[string]any{"body": body})
	}
}

func TestAnnotateAllBatches(t *testing.T) {
	var calls atomic.Int32
	var batchSizes []int
	srv := httptest.NewServer(echoHandler(t, &calls, &batchSizes))
	defer srv.Close()

	client := annotate.NewClient(srv.URL, "news", nil, 20, discard())
	outcomes := client.AnnotateAll(context.Background(), rawDocs(25))

	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, []int{20, 5}, batchSizes)
	require.Len(t, outcomes, 25)

	for i, outcome := range outcomes {
		require.True(t, outcome.Annotated(), "outcome %d", i)
		// Submission order survives the batching.
		require.Equal(t, fmt.Sprintf("doc-%02d", i), outcome.Doc.ID)
		require.Equal(t, outcome.Doc.ID, outcome.NAF.Metadata.DocID)
	}
}

func TestAnnotateAllSecondBatchFailureIsIsolated(t *testing.T) {
	var calls atomic.Int32
	var batchSizes []int
	inner := echoHandler(t, &calls, &batchSizes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() >= 1 {
			calls.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		inner(w, r)
	}))
	defer srv.Close()

	client := annotate.NewClient(srv.URL, "news", nil, 20, discard())
	outcomes := client.AnnotateAll(context.Background(), rawDocs(25))

	require.Len(t, outcomes, 25)
	for _, outcome := range outcomes[:20] {
		require.True(t, outcome.Annotated())
	}
	for _, outcome := range outcomes[20:] {
		require.True(t, outcome.Failed())
		require.Nil(t, outcome.NAF)
	}
}

func TestAnnotateAllFilterClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := []map[string]any{
			{"naf": nil, "messages": []string{"标题含有过滤词: 广告"}},
			{"naf": nil, "messages": []string{"找到相同资讯 doc-xx"}},
			{"naf": nil, "messages": []string{"未知原因"}},
		}
		json.NewEncoder(w).Encode(map[string]any{"body": body})
	}))
	defer srv.Close()

	client := annotate.NewClient(srv.URL, "news", nil, 20, discard())
	outcomes := client.AnnotateAll(context.Background(), rawDocs(3))

	require.Len(t, outcomes, 3)
	require.Equal(t, annotate.FilterTitle, outcomes[0].Reason)
	require.Equal(t, annotate.FilterDuplicate, outcomes[1].Reason)
	require.Equal(t, annotate.FilterOther, outcomes[2].Reason)
	for _, outcome := range outcomes {
		require.False(t, outcome.Annotated())
		require.False(t, outcome.Failed())
	}
}

func TestAnnotateAllShortResponseFailsTail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req receivedRequest
		json.NewDecoder(r.Body).Decode(&req)

		body := []map[string]any{
			{"naf": map[string]any{"metadata": req.Documents[0].Metadata}},
		}
		json.NewEncoder(w).Encode(map[string]any{"body": body})
	}))
	defer srv.Close()

	client := annotate.NewClient(srv.URL, "news", nil, 20, discard())
	outcomes := client.AnnotateAll(context.Background(), rawDocs(3))

	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].Annotated())
	require.True(t, outcomes[1].Failed())
	require.True(t, outcomes[2].Failed())
}

func TestAnnotateRequestShape(t *testing.T) {
	var got receivedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"body": []any{
			map[string]any{"naf": map[string]any{"metadata": got.Documents[0].Metadata}},
		}})
	}))
	defer srv.Close()

	client := annotate.NewClient(srv.URL, "news", nil, 20, discard())
	client.AnnotateAll(context.Background(), rawDocs(1))

	require.Equal(t, "news", got.Config.Name)
	require.Equal(t, annotate.DefaultComponents, got.Config.Components)
	require.Len(t, got.Documents, 1)
	require.Equal(t, "doc-00", got.Documents[0].Metadata.DocID)
	require.Equal(t, "2020-06-23 12:00:00", got.Documents[0].Metadata.CrawlTime)
}

func TestExtractAllFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Documents []models.Document `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		body := make([]map[string]any, len(req.Documents))
		for i, doc := range req.Documents {
			body[i] = map[string]any{"naf": annotate.FragmentNAF{
				DocID:       doc.Key,
				Title:       doc.Title,
				PublishTime: doc.PublishTime,
				EMFs: []annotate.EMF{{
					Section:   "甲公司完成融资",
					EventType: "投融资",
					Entities:  []models.Entity{{Name: "甲公司"}},
				}},
			}}
		}
		json.NewEncoder(w).Encode(map[string]any{"body": body})
	}))
	defer srv.Close()

	docs := []models.Document{
		{Key: "d1", Title: "甲公司融资", PublishTime: "2020-07-02 09:00:00"},
		{Key: "d2", Title: "乙公司上市", PublishTime: "2020-07-02 10:00:00"},
	}

	client := annotate.NewFragmentClient(srv.URL, 20, discard())
	outcomes := client.ExtractAll(context.Background(), docs)

	require.Len(t, outcomes, 2)
	for i, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		require.Equal(t, docs[i].Key, outcome.NAF.DocID)
		require.Len(t, outcome.NAF.EMFs, 1)
		require.Equal(t, "投融资", outcome.NAF.EMFs[0].EventType)
	}
}

func TestExtractAllServiceErrorFailsBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := annotate.NewFragmentClient(srv.URL, 20, discard())
	outcomes := client.ExtractAll(context.Background(), []models.Document{{Key: "d1"}})

	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	require.Nil(t, outcomes[0].NAF)
}
