package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// Payload field keys indexed on every point.
const (
	fieldTenantID = "tenant_id"
	fieldFileID   = "file_id"
)

// facetLimit bounds one distinct-file-id facet page. Tenants with more
// distinct files than this are paged by excluding already-seen ids.
const facetLimit = 10000

// EnsureCollection creates the tenant's collection and the file_id payload
// index if they do not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, tenantID uuid.UUID, dimensions int) error {
	if dimensions <= 0 {
		return errors.New("invalid dimension")
	}
	name := c.CollectionName(tenantID)

	err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return wrapServiceError("get collection", err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return wrapServiceError("create collection", err)
	}

	for _, field := range []string{fieldTenantID, fieldFileID} {
		index := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		if err := c.do(ctx, http.MethodPut, "/collections/"+name+"/index?wait=true", index, nil); err != nil {
			return wrapServiceError("create payload index", err)
		}
	}
	return nil
}

// UpsertChunks inserts one point per chunk. Point ids are derived
// deterministically from the file id and chunk position, so re-running the
// same file overwrites instead of duplicating.
func (c *Client) UpsertChunks(ctx context.Context, tenantID, fileID uuid.UUID, contents []string, vectors [][]float32) error {
	if len(contents) != len(vectors) {
		return errors.New("contents and vectors length mismatch")
	}
	if len(contents) == 0 {
		return nil
	}

	points := make([]map[string]any, len(contents))
	for i := range contents {
		pointID := uuid.NewSHA1(fileID, []byte(strconv.Itoa(i)))
		points[i] = map[string]any{
			"id":     pointID.String(),
			"vector": vectors[i],
			"payload": map[string]any{
				fieldTenantID: tenantID.String(),
				fieldFileID:   fileID.String(),
				"chunk_index": i,
				"content":     contents[i],
			},
		}
	}

	body := map[string]any{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.CollectionName(tenantID))
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return wrapServiceError("upsert points", err)
	}
	return nil
}

func fileFilter(fileID uuid.UUID) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": fieldFileID, "match": map[string]any{"value": fileID.String()}},
		},
	}
}

// DeleteByFile removes every point tagged with the file id. A missing
// collection or already-absent file id is a no-op.
func (c *Client) DeleteByFile(ctx context.Context, tenantID, fileID uuid.UUID) error {
	body := map[string]any{"filter": fileFilter(fileID)}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.CollectionName(tenantID))
	err := c.do(ctx, http.MethodPost, path, body, nil)
	if err != nil && !isNotFound(err) {
		return wrapServiceError("delete points", err)
	}
	return nil
}

type countResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// CountAll returns the tenant's total point count. A tenant without a
// collection counts as zero.
func (c *Client) CountAll(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return c.count(ctx, tenantID, map[string]any{"exact": true})
}

// CountByFile returns the point count for one file id.
func (c *Client) CountByFile(ctx context.Context, tenantID, fileID uuid.UUID) (int, error) {
	return c.count(ctx, tenantID, map[string]any{
		"exact":  true,
		"filter": fileFilter(fileID),
	})
}

func (c *Client) count(ctx context.Context, tenantID uuid.UUID, body map[string]any) (int, error) {
	var resp countResponse
	path := fmt.Sprintf("/collections/%s/points/count", c.CollectionName(tenantID))
	err := c.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, wrapServiceError("count points", err)
	}
	return resp.Result.Count, nil
}

type facetResponse struct {
	Result struct {
		Hits []struct {
			Value string `json:"value"`
			Count int    `json:"count"`
		} `json:"hits"`
	} `json:"result"`
}

// CountByFiles returns per-file point counts for the given file ids using a
// single indexed facet query over the file_id payload field.
func (c *Client) CountByFiles(ctx context.Context, tenantID uuid.UUID, fileIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(fileIDs))
	if len(fileIDs) == 0 {
		return counts, nil
	}

	ids := make([]string, len(fileIDs))
	for i, id := range fileIDs {
		ids[i] = id.String()
	}

	body := map[string]any{
		"key":   fieldFileID,
		"exact": true,
		"limit": len(fileIDs),
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": fieldFileID, "match": map[string]any{"any": ids}},
			},
		},
	}

	var resp facetResponse
	path := fmt.Sprintf("/collections/%s/facet", c.CollectionName(tenantID))
	err := c.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		if isNotFound(err) {
			return counts, nil
		}
		return nil, wrapServiceError("facet points", err)
	}

	for _, hit := range resp.Result.Hits {
		id, parseErr := uuid.Parse(hit.Value)
		if parseErr != nil {
			continue
		}
		counts[id] = hit.Count
	}
	return counts, nil
}

// DistinctFileIDs enumerates the distinct file ids present in the tenant's
// collection via the file_id facet. The facet endpoint caps one response at
// the requested limit, so full pages are followed up with a query excluding
// every id seen so far until a short page arrives.
func (c *Client) DistinctFileIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	path := fmt.Sprintf("/collections/%s/facet", c.CollectionName(tenantID))

	var ids []uuid.UUID
	var seen []string
	for {
		body := map[string]any{
			"key":   fieldFileID,
			"exact": true,
			"limit": facetLimit,
		}
		if len(seen) > 0 {
			body["filter"] = map[string]any{
				"must_not": []map[string]any{
					{"key": fieldFileID, "match": map[string]any{"any": seen}},
				},
			}
		}

		var resp facetResponse
		err := c.do(ctx, http.MethodPost, path, body, &resp)
		if err != nil {
			if isNotFound(err) {
				return ids, nil
			}
			return nil, wrapServiceError("facet points", err)
		}

		for _, hit := range resp.Result.Hits {
			// Unparsable values still join the exclusion list, otherwise a
			// stray payload value would repeat on every follow-up page.
			seen = append(seen, hit.Value)
			id, parseErr := uuid.Parse(hit.Value)
			if parseErr != nil {
				continue
			}
			ids = append(ids, id)
		}

		if len(resp.Result.Hits) < facetLimit {
			return ids, nil
		}
	}
}
