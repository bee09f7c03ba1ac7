package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// Vector field names for hybrid collections
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	// Payload keys
	payloadID     = "_id"
	payloadMeta   = "meta"
	payloadFilter = "filter"

	// Collection metadata keys
	metaSparseDimension = "sparse_dimension"
	metaPrecision       = "precision"
	metaCreatedAt       = "created_at"

	// BackupCatalogScope is the preference scope mapping backup names to snapshots
	BackupCatalogScope = "qdrant:backups"

	snapshotTimeout = 10 * time.Minute
)

// pointNamespace derives stable point UUIDs from arbitrary string ids.
var pointNamespace = uuid.MustParse("6f1c52a4-3f8e-4d0e-9a39-5f0b8f1c2d7e")

// JobLog records backup jobs for backends that do not track them.
type JobLog interface {
	CreateJob(ctx context.Context, job *BackupJob) error
	ListJobs(ctx context.Context) ([]BackupJob, error)
	UpdateJob(ctx context.Context, job *BackupJob) error
}

// Catalog is a scoped key-value store. Lookups of missing keys return an
// error wrapping ErrNotFound.
type Catalog interface {
	GetPreference(ctx context.Context, scope, key string) (string, error)
	SetPreference(ctx context.Context, scope, key, value string) error
	DeletePreference(ctx context.Context, scope, key string) error
}

// QdrantConfig configures QdrantStore.
type QdrantConfig struct {
	// GRPCAddr is "host:port" of the gRPC API, e.g. "localhost:6334"
	GRPCAddr string
	// RESTURL is the HTTP API base used for snapshot transfer, e.g. "http://localhost:6333"
	RESTURL string
	APIKey  string
	// SparseDimension is reported for hybrid collections created outside the console
	SparseDimension int
	Jobs            JobLog
	Catalog         Catalog
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// QdrantStore implements Backend on Qdrant. Indexes are collections, backups
// are collection snapshots.
type QdrantStore struct {
	client     *qdrant.Client
	restURL    string
	apiKey     string
	sparseDim  int
	jobs       JobLog
	catalog    Catalog
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	hybrid map[string]bool

	wg sync.WaitGroup
}

// NewQdrantStore creates a new Qdrant vector store client
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Jobs == nil || cfg.Catalog == nil {
		return nil, errors.New("qdrant store needs a job log and a backup catalog")
	}

	host, portStr, err := net.SplitHostPort(cfg.GRPCAddr)
	if err != nil {
		host = cfg.GRPCAddr
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QdrantStore{
		client:     client,
		restURL:    strings.TrimSuffix(cfg.RESTURL, "/"),
		apiKey:     cfg.APIKey,
		sparseDim:  cfg.SparseDimension,
		jobs:       cfg.Jobs,
		catalog:    cfg.Catalog,
		httpClient: httpClient,
		logger:     logger,
		hybrid:     make(map[string]bool),
	}, nil
}

// NewQdrantFactory builds stores whose API key is the console token, falling
// back to the configured key when the token is empty.
func NewQdrantFactory(cfg QdrantConfig) Factory {
	return func(token string) (Backend, error) {
		c := cfg
		if token != "" {
			c.APIKey = token
		}
		return NewQdrantStore(c)
	}
}

// Close waits for running snapshots and closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	s.wg.Wait()
	return s.client.Close()
}

// Health checks backend liveness
func (s *QdrantStore) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("failed to check health: %w", mapGRPCError(err))
	}
	return nil
}

func (s *QdrantStore) ListIndexes(ctx context.Context) ([]IndexInfo, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", mapGRPCError(err))
	}

	indexes := make([]IndexInfo, 0, len(names))
	for _, name := range names {
		info, err := s.GetIndex(ctx, name)
		if err != nil {
			// dropped between list and describe
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		indexes = append(indexes, *info)
	}
	return indexes, nil
}

func (s *QdrantStore) GetIndex(ctx context.Context, name string) (*IndexInfo, error) {
	col, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %q: %w", name, mapGRPCError(err))
	}
	info := s.describe(name, col)

	s.mu.Lock()
	s.hybrid[name] = info.Hybrid()
	s.mu.Unlock()

	return &info, nil
}

func (s *QdrantStore) describe(name string, col *qdrant.CollectionInfo) IndexInfo {
	cfg := col.GetConfig()
	params := cfg.GetParams()
	metadata := cfg.GetMetadata()

	info := IndexInfo{
		Name:           name,
		M:              int(cfg.GetHnswConfig().GetM()),
		EfConstruction: int(cfg.GetHnswConfig().GetEfConstruct()),
		ElementCount:   int64(col.GetPointsCount()),
	}

	vp := params.GetVectorsConfig().GetParams()
	if vp == nil {
		vp = params.GetVectorsConfig().GetParamsMap().GetMap()[denseVectorName]
	}
	info.Dimension = int(vp.GetSize())
	info.SpaceType = spaceFromDistance(vp.GetDistance())
	info.Precision = precisionFromConfig(vp, cfg.GetQuantizationConfig())

	if _, ok := params.GetSparseVectorsConfig().GetMap()[sparseVectorName]; ok {
		info.SparseDimension = s.sparseDim
	}

	if v, ok := metadata[metaSparseDimension]; ok && v.GetIntegerValue() > 0 {
		info.SparseDimension = int(v.GetIntegerValue())
	}
	if v, ok := metadata[metaPrecision]; ok && v.GetStringValue() != "" {
		info.Precision = Precision(v.GetStringValue())
	}
	if v, ok := metadata[metaCreatedAt]; ok {
		if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			info.CreatedAt = t
		}
	}
	return info
}

func (s *QdrantStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	params := &qdrant.VectorParams{
		Size:     uint64(spec.Dimension),
		Distance: distanceFromSpace(spec.SpaceType),
	}
	datatype, quantization := precisionConfig(spec.Precision)
	if datatype != qdrant.Datatype_Default {
		params.Datatype = &datatype
	}

	req := &qdrant.CreateCollection{
		CollectionName: spec.Name,
		HnswConfig: &qdrant.HnswConfigDiff{
			M:           qdrant.PtrOf(uint64(spec.M)),
			EfConstruct: qdrant.PtrOf(uint64(spec.EfConstruction)),
		},
		QuantizationConfig: quantization,
		Metadata: map[string]*qdrant.Value{
			metaSparseDimension: qdrant.NewValueInt(int64(spec.SparseDimension)),
			metaPrecision:       qdrant.NewValueString(string(spec.Precision)),
			metaCreatedAt:       qdrant.NewValueString(time.Now().UTC().Format(time.RFC3339)),
		},
	}

	if spec.SparseDimension > 0 {
		req.VectorsConfig = qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: params,
		})
		req.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		})
	} else {
		req.VectorsConfig = qdrant.NewVectorsConfig(params)
	}

	if err := s.client.CreateCollection(ctx, req); err != nil {
		return fmt.Errorf("failed to create collection: %w", mapGRPCError(err))
	}

	s.mu.Lock()
	s.hybrid[spec.Name] = spec.SparseDimension > 0
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) DeleteIndex(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", mapGRPCError(err))
	}

	s.mu.Lock()
	delete(s.hybrid, name)
	s.mu.Unlock()
	return nil
}

// isHybrid reports whether the collection uses named dense and sparse vectors.
func (s *QdrantStore) isHybrid(ctx context.Context, index string) (bool, error) {
	s.mu.Lock()
	hybrid, ok := s.hybrid[index]
	s.mu.Unlock()
	if ok {
		return hybrid, nil
	}

	info, err := s.GetIndex(ctx, index)
	if err != nil {
		return false, err
	}
	return info.Hybrid(), nil
}

// Upsert inserts or updates the batch in one request
func (s *QdrantStore) Upsert(ctx context.Context, index string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	hybrid, err := s.isHybrid(ctx, index)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		payload, err := qdrant.TryValueMap(map[string]any{
			payloadID:     v.ID,
			payloadMeta:   mapOrEmpty(v.Meta),
			payloadFilter: mapOrEmpty(v.Filter),
		})
		if err != nil {
			return fmt.Errorf("failed to encode payload of vector %q: %w", v.ID, err)
		}

		point := &qdrant.PointStruct{
			Id:      pointID(v.ID),
			Payload: payload,
		}
		if hybrid {
			named := map[string]*qdrant.Vector{
				denseVectorName: qdrant.NewVectorDense(v.Dense),
			}
			if v.Sparse != nil && len(v.Sparse.Indices) > 0 {
				named[sparseVectorName] = qdrant.NewVectorSparse(v.Sparse.Indices, v.Sparse.Values)
			}
			point.Vectors = qdrant.NewVectorsMap(named)
		} else {
			point.Vectors = qdrant.NewVectors(v.Dense...)
		}
		points[i] = point
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", mapGRPCError(err))
	}
	return nil
}

func (s *QdrantStore) GetVector(ctx context.Context, index, id string) (*Vector, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: index,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", mapGRPCError(err))
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("vector %q: %w", id, ErrNotFound)
	}

	p := points[0]
	v := &Vector{
		ID:     payloadString(p.GetPayload(), payloadID, id),
		Meta:   payloadMap(p.GetPayload(), payloadMeta),
		Filter: payloadMap(p.GetPayload(), payloadFilter),
	}
	v.Dense, v.Sparse = vectorsFromOutput(p.GetVectors())
	return v, nil
}

func (s *QdrantStore) DeleteVector(ctx context.Context, index, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointID(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", mapGRPCError(err))
	}
	return nil
}

// DeleteWithFilter counts the matching points, then deletes them. Qdrant does
// not report how many points a delete removed, so the count is best-effort: a
// write landing between the two calls makes it differ from the actual removal.
func (s *QdrantStore) DeleteWithFilter(ctx context.Context, index string, filter json.RawMessage) (int, error) {
	f, err := TranslateFilter(filter)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, errors.New("refusing to delete with an empty filter")
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: index,
		Filter:         f,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", mapGRPCError(err))
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(f),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete by filter: %w", mapGRPCError(err))
	}
	return int(count), nil
}

// Query runs a dense search, fused with a sparse one by RRF when the query
// carries sparse terms and the collection is hybrid
func (s *QdrantStore) Query(ctx context.Context, index string, q Query) ([]SearchResult, error) {
	info, err := s.GetIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	filter, err := TranslateFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	var params *qdrant.SearchParams
	if q.Ef > 0 {
		params = &qdrant.SearchParams{HnswEf: qdrant.PtrOf(uint64(q.Ef))}
	}

	req := &qdrant.QueryPoints{
		CollectionName: index,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(q.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(q.IncludeVectors),
	}

	switch {
	case info.Hybrid() && q.Sparse != nil && len(q.Sparse.Indices) > 0:
		prefetchLimit := qdrant.PtrOf(uint64(q.TopK * 2))
		req.Prefetch = []*qdrant.PrefetchQuery{
			{
				Query:  qdrant.NewQueryDense(q.Vector),
				Using:  qdrant.PtrOf(denseVectorName),
				Filter: filter,
				Params: params,
				Limit:  prefetchLimit,
			},
			{
				Query:  qdrant.NewQuerySparse(q.Sparse.Indices, q.Sparse.Values),
				Using:  qdrant.PtrOf(sparseVectorName),
				Filter: filter,
				Limit:  prefetchLimit,
			},
		}
		req.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
	case info.Hybrid():
		req.Query = qdrant.NewQueryDense(q.Vector)
		req.Using = qdrant.PtrOf(denseVectorName)
		req.Params = params
	default:
		req.Query = qdrant.NewQueryDense(q.Vector)
		req.Params = params
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", mapGRPCError(err))
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		r := SearchResult{
			ID:     payloadString(p.GetPayload(), payloadID, p.GetId().GetUuid()),
			Meta:   payloadMap(p.GetPayload(), payloadMeta),
			Filter: payloadMap(p.GetPayload(), payloadFilter),
		}
		r.Similarity, r.Distance = scoreToSimilarity(info.SpaceType, p.GetScore())
		if q.IncludeVectors {
			r.Vector, _ = vectorsFromOutput(p.GetVectors())
		}
		results = append(results, r)
	}
	return results, nil
}

// CreateBackup records a job and snapshots the collection in the background.
func (s *QdrantStore) CreateBackup(ctx context.Context, index, name string) (*BackupJob, error) {
	if _, err := s.catalog.GetPreference(ctx, BackupCatalogScope, name); err == nil {
		return nil, fmt.Errorf("backup %q already exists", name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check backup catalog: %w", err)
	}
	if _, err := s.GetIndex(ctx, index); err != nil {
		return nil, err
	}

	job := &BackupJob{
		ID:         uuid.NewString(),
		IndexID:    index,
		BackupName: name,
		Status:     JobInProgress,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record backup job: %w", err)
	}

	s.wg.Add(1)
	go s.runSnapshot(*job)

	return job, nil
}

func (s *QdrantStore) runSnapshot(job BackupJob) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := s.client.CreateSnapshot(ctx, job.IndexID)
	if err == nil {
		err = s.catalog.SetPreference(ctx, BackupCatalogScope, job.BackupName, job.IndexID+"/"+snap.GetName())
	}

	done := time.Now().UTC()
	job.CompletedAt = &done
	if err != nil {
		job.Status = JobFailed
		job.Error = mapGRPCError(err).Error()
		s.logger.Error("backup failed", "backup", job.BackupName, "index", job.IndexID, "error", err)
	} else {
		job.Status = JobCompleted
		s.logger.Info("backup completed", "backup", job.BackupName, "index", job.IndexID, "snapshot", snap.GetName())
	}

	if err := s.jobs.UpdateJob(ctx, &job); err != nil {
		s.logger.Error("failed to update backup job", "job_id", job.ID, "error", err)
	}
}

// ListBackups returns the names of completed backups whose snapshot is cataloged
func (s *QdrantStore) ListBackups(ctx context.Context) ([]string, error) {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup jobs: %w", err)
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, j := range jobs {
		if j.Status != JobCompleted || seen[j.BackupName] {
			continue
		}
		seen[j.BackupName] = true
		if _, _, err := s.resolve(ctx, j.BackupName); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		names = append(names, j.BackupName)
	}
	return names, nil
}

func (s *QdrantStore) ListBackupJobs(ctx context.Context) ([]BackupJob, error) {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup jobs: %w", err)
	}
	return jobs, nil
}

// RestoreBackup asks Qdrant to recover targetIndex from the backup's snapshot
func (s *QdrantStore) RestoreBackup(ctx context.Context, name, targetIndex string) error {
	collection, snapshot, err := s.resolve(ctx, name)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"location": s.snapshotURL(collection, snapshot),
	})
	if err != nil {
		return fmt.Errorf("failed to encode recover request: %w", err)
	}

	endpoint := s.restURL + "/collections/" + url.PathEscape(targetIndex) + "/snapshots/recover?wait=true"
	resp, err := s.rest(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	resp.Body.Close()

	s.mu.Lock()
	delete(s.hybrid, targetIndex)
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) DeleteBackup(ctx context.Context, name string) error {
	collection, snapshot, err := s.resolve(ctx, name)
	if err != nil {
		return err
	}
	if err := s.client.DeleteSnapshot(ctx, collection, snapshot); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", mapGRPCError(err))
	}
	if err := s.catalog.DeletePreference(ctx, BackupCatalogScope, name); err != nil {
		return fmt.Errorf("failed to remove backup from catalog: %w", err)
	}
	return nil
}

// DownloadBackup streams the snapshot file. The caller closes the reader.
func (s *QdrantStore) DownloadBackup(ctx context.Context, name string) (io.ReadCloser, error) {
	collection, snapshot, err := s.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	resp, err := s.rest(ctx, http.MethodGet, s.snapshotURL(collection, snapshot), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}
	return resp.Body, nil
}

// UploadBackup is not supported: a Qdrant snapshot upload must name its
// target collection up front.
func (s *QdrantStore) UploadBackup(ctx context.Context, filename string, archive io.Reader) error {
	return fmt.Errorf("upload backup: %w", ErrUnsupported)
}

func (s *QdrantStore) resolve(ctx context.Context, name string) (collection, snapshot string, err error) {
	ref, err := s.catalog.GetPreference(ctx, BackupCatalogScope, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", "", fmt.Errorf("backup %q: %w", name, ErrNotFound)
		}
		return "", "", fmt.Errorf("failed to read backup catalog: %w", err)
	}
	collection, snapshot, ok := strings.Cut(ref, "/")
	if !ok {
		return "", "", fmt.Errorf("malformed catalog entry for backup %q", name)
	}
	return collection, snapshot, nil
}

func (s *QdrantStore) snapshotURL(collection, snapshot string) string {
	return s.restURL + "/collections/" + url.PathEscape(collection) + "/snapshots/" + url.PathEscape(snapshot)
}

func (s *QdrantStore) rest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("qdrant: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// pointID maps a console vector id onto a Qdrant point id.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func mapGRPCError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func distanceFromSpace(space SpaceType) qdrant.Distance {
	switch space {
	case SpaceL2:
		return qdrant.Distance_Euclid
	case SpaceIP:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

func spaceFromDistance(d qdrant.Distance) SpaceType {
	switch d {
	case qdrant.Distance_Euclid:
		return SpaceL2
	case qdrant.Distance_Dot:
		return SpaceIP
	default:
		return SpaceCosine
	}
}

// precisionConfig maps a precision onto a vector datatype and collection
// quantization. Qdrant has no 16-bit integer storage, int16d keeps float32.
func precisionConfig(p Precision) (qdrant.Datatype, *qdrant.QuantizationConfig) {
	switch p {
	case PrecisionFloat16:
		return qdrant.Datatype_Float16, nil
	case PrecisionInt8D:
		return qdrant.Datatype_Float32, qdrant.NewQuantizationScalar(&qdrant.ScalarQuantization{
			Type: qdrant.QuantizationType_Int8,
		})
	case PrecisionBinary:
		return qdrant.Datatype_Float32, qdrant.NewQuantizationBinary(&qdrant.BinaryQuantization{})
	case PrecisionFloat32, PrecisionInt16D:
		return qdrant.Datatype_Float32, nil
	}
	return qdrant.Datatype_Default, nil
}

func precisionFromConfig(vp *qdrant.VectorParams, q *qdrant.QuantizationConfig) Precision {
	switch {
	case q.GetBinary() != nil:
		return PrecisionBinary
	case q.GetScalar() != nil:
		return PrecisionInt8D
	case vp.GetDatatype() == qdrant.Datatype_Float16:
		return PrecisionFloat16
	}
	return PrecisionFloat32
}

// scoreToSimilarity splits a Qdrant score into similarity and distance.
// Euclid scores are distances, the others similarities.
func scoreToSimilarity(space SpaceType, score float32) (similarity, distance float32) {
	if space == SpaceL2 {
		return 1 / (1 + score), score
	}
	return score, 1 - score
}

func vectorsFromOutput(out *qdrant.VectorsOutput) ([]float32, *SparseVector) {
	if out == nil {
		return nil, nil
	}
	if single := out.GetVector(); single != nil {
		return single.GetDenseVector().GetData(), nil
	}

	named := out.GetVectors().GetVectors()
	dense := named[denseVectorName].GetDenseVector().GetData()
	var sparse *SparseVector
	if sv := named[sparseVectorName].GetSparseVector(); sv != nil {
		sparse = &SparseVector{Indices: sv.GetIndices(), Values: sv.GetValues()}
	}
	return dense, sparse
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func payloadString(payload map[string]*qdrant.Value, key, fallback string) string {
	if v, ok := payload[key]; ok && v.GetStringValue() != "" {
		return v.GetStringValue()
	}
	return fallback
}

func payloadMap(payload map[string]*qdrant.Value, key string) map[string]any {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	m, _ := valueToAny(v).(map[string]any)
	if len(m) == 0 {
		return nil
	}
	return m
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_StructValue:
		fields := k.StructValue.GetFields()
		m := make(map[string]any, len(fields))
		for name, field := range fields {
			m[name] = valueToAny(field)
		}
		return m
	case *qdrant.Value_ListValue:
		values := k.ListValue.GetValues()
		list := make([]any, len(values))
		for i, item := range values {
			list[i] = valueToAny(item)
		}
		return list
	}
	return nil
}

// Ensure QdrantStore implements Backend
var _ Backend = (*QdrantStore)(nil)
