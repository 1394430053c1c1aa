package db

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"pulse/models"
)

// Memory is an in-process implementation of every store. It backs tests and
// the --memory development mode.
type Memory struct {
	mu sync.RWMutex

	now func() time.Time

	feedback     map[uint]*models.Feedback
	annotations  map[uint]*models.Annotation // by feedback id
	insights     map[uint]*models.Insight
	clusters     map[uint]*models.Cluster
	memberships  map[uint][]uint // cluster id -> feedback ids
	requirements map[uint]*models.Requirement
	reqLinks     map[uint]map[uint]float64 // requirement id -> feedback id -> relevance
	abTests      map[uint]*models.ABTest
	assignments  map[uint]map[uint]string // test id -> feedback id -> variant
	embeddings   map[uint][]float32

	nextID uint
}

func NewMemory() *Memory {
	return &Memory{
		now:          func() time.Time { return time.Now().UTC() },
		feedback:     map[uint]*models.Feedback{},
		annotations:  map[uint]*models.Annotation{},
		insights:     map[uint]*models.Insight{},
		clusters:     map[uint]*models.Cluster{},
		memberships:  map[uint][]uint{},
		requirements: map[uint]*models.Requirement{},
		reqLinks:     map[uint]map[uint]float64{},
		abTests:      map[uint]*models.ABTest{},
		assignments:  map[uint]map[uint]string{},
		embeddings:   map[uint][]float32{},
	}
}

// id hands out ids from one sequence; callers hold the write lock.
func (m *Memory) id() uint {
	m.nextID++
	return m.nextID
}

func (m *Memory) stamp(createdAt *time.Time, updatedAt *time.Time) {
	now := m.now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func (m *Memory) CreateFeedback(_ context.Context, f *models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertFeedback(f)
	return nil
}

func (m *Memory) CreateFeedbackBatch(_ context.Context, fs []*models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fs {
		m.insertFeedback(f)
	}
	return nil
}

func (m *Memory) insertFeedback(f *models.Feedback) {
	f.ID = m.id()
	m.stamp(&f.CreatedAt, &f.UpdatedAt)
	stored := *f
	if f.Annotation != nil {
		a := *f.Annotation
		a.FeedbackID = f.ID
		m.annotations[f.ID] = &a
		stored.HasAnnotation = true
		f.HasAnnotation = true
	}
	stored.Annotation = nil
	m.feedback[f.ID] = &stored
}

// withAnnotation returns a detached copy of f with its annotation attached.
func (m *Memory) withAnnotation(f *models.Feedback) models.Feedback {
	out := *f
	if a, ok := m.annotations[f.ID]; ok {
		cp := *a
		out.Annotation = &cp
	}
	return out
}

func (m *Memory) GetFeedback(_ context.Context, id uint) (*models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.feedback[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.withAnnotation(f)
	return &out, nil
}

func (m *Memory) ListFeedback(_ context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := []models.Feedback{}
	for _, f := range m.feedback {
		if filter.ProductID != "" && f.ProductID != filter.ProductID {
			continue
		}
		if filter.Source != "" && f.Source != filter.Source {
			continue
		}
		if !filter.Since.IsZero() && f.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && f.CreatedAt.After(filter.Until) {
			continue
		}
		item := m.withAnnotation(f)
		if filter.Sentiment != "" && (item.Annotation == nil || item.Annotation.Sentiment != filter.Sentiment) {
			continue
		}
		matches = append(matches, item)
	}
	sortNewestFirst(matches)

	total := int64(len(matches))
	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return []models.Feedback{}, total, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, total, nil
}

func sortNewestFirst(fs []models.Feedback) {
	sort.Slice(fs, func(i, j int) bool {
		if !fs[i].CreatedAt.Equal(fs[j].CreatedAt) {
			return fs[i].CreatedAt.After(fs[j].CreatedAt)
		}
		return fs[i].ID > fs[j].ID
	})
}

func (m *Memory) FeedbackByIDs(_ context.Context, ids []uint) ([]models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Feedback{}
	seen := map[uint]bool{}
	for _, id := range ids {
		if f, ok := m.feedback[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, m.withAnnotation(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PendingFeedback(_ context.Context, afterID uint, limit int) ([]models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Feedback{}
	for _, f := range m.feedback {
		if !f.HasAnnotation && f.ID > afterID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveAnnotation(_ context.Context, a *models.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feedback[a.FeedbackID]
	if !ok {
		return ErrNotFound
	}
	cp := *a
	if existing, ok := m.annotations[a.FeedbackID]; ok {
		cp.ID = existing.ID
	} else {
		cp.ID = m.id()
	}
	a.ID = cp.ID
	m.annotations[a.FeedbackID] = &cp
	f.HasAnnotation = true
	return nil
}

func (m *Memory) CreateInsights(_ context.Context, insights []*models.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range insights {
		in.ID = m.id()
		m.stamp(&in.CreatedAt, &in.UpdatedAt)
		if in.Status == "" {
			in.Status = models.InsightNew
		}
		cp := *in
		m.insights[in.ID] = &cp
	}
	return nil
}

func (m *Memory) ListInsights(_ context.Context, filter InsightFilter) ([]models.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Insight{}
	for _, in := range m.insights {
		if filter.Status != "" && in.Status != filter.Status {
			continue
		}
		if filter.Type != "" && in.Type != filter.Type {
			continue
		}
		out = append(out, *in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) GetInsight(_ context.Context, id uint) (*models.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.insights[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *Memory) UpdateInsightStatus(_ context.Context, id uint, from, to models.InsightStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.insights[id]
	if !ok {
		return ErrNotFound
	}
	if in.Status != from {
		return ErrStatusChanged
	}
	in.Status = to
	in.UpdatedAt = m.now()
	return nil
}

func (m *Memory) SaveCluster(_ context.Context, c *models.Cluster, feedbackIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.clusters {
		if existing.Name == c.Name {
			c.ID = existing.ID
			c.CreatedAt = existing.CreatedAt
		}
	}
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.stamp(&c.CreatedAt, &c.UpdatedAt)
	cp := *c
	m.clusters[c.ID] = &cp

	seen := map[uint]bool{}
	members := make([]uint, 0, len(feedbackIDs))
	for _, id := range feedbackIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	m.memberships[c.ID] = members
	return nil
}

func (m *Memory) ListClusters(_ context.Context) ([]models.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Cluster, 0, len(m.clusters))
	for _, c := range m.clusters {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ClusterMembers(_ context.Context, clusterID uint, limit int) ([]models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feedbackFor(m.memberships[clusterID], limit), nil
}

// feedbackFor resolves ids to feedback, newest first; callers hold the lock.
func (m *Memory) feedbackFor(ids []uint, limit int) []models.Feedback {
	out := []models.Feedback{}
	for _, id := range ids {
		if f, ok := m.feedback[id]; ok {
			out = append(out, m.withAnnotation(f))
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Memory) CreateRequirement(_ context.Context, r *models.Requirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	m.stamp(&r.CreatedAt, &r.UpdatedAt)
	cp := *r
	m.requirements[r.ID] = &cp
	return nil
}

func (m *Memory) ListRequirements(_ context.Context, status string) ([]models.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Requirement{}
	for _, r := range m.requirements {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) GetRequirement(_ context.Context, id uint) (*models.Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requirements[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) UpdateRequirement(_ context.Context, r *models.Requirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requirements[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = m.now()
	cp := *r
	m.requirements[r.ID] = &cp
	return nil
}

func (m *Memory) DeleteRequirement(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requirements[id]; !ok {
		return ErrNotFound
	}
	delete(m.requirements, id)
	delete(m.reqLinks, id)
	return nil
}

func (m *Memory) LinkFeedback(_ context.Context, link models.RequirementFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requirements[link.RequirementID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.feedback[link.FeedbackID]; !ok {
		return ErrNotFound
	}
	if m.reqLinks[link.RequirementID] == nil {
		m.reqLinks[link.RequirementID] = map[uint]float64{}
	}
	m.reqLinks[link.RequirementID][link.FeedbackID] = link.Relevance
	return nil
}

func (m *Memory) RequirementFeedback(_ context.Context, id uint) ([]models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	links := m.reqLinks[id]
	out := []models.Feedback{}
	for fid := range links {
		if f, ok := m.feedback[fid]; ok {
			out = append(out, m.withAnnotation(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if links[out[i].ID] != links[out[j].ID] {
			return links[out[i].ID] > links[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CreateABTest(_ context.Context, t *models.ABTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	m.stamp(&t.CreatedAt, &t.UpdatedAt)
	cp := *t
	m.abTests[t.ID] = &cp
	return nil
}

func (m *Memory) ListABTests(_ context.Context, status string) ([]models.ABTest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.ABTest{}
	for _, t := range m.abTests {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) GetABTest(_ context.Context, id uint) (*models.ABTest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.abTests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) UpdateABTest(_ context.Context, t *models.ABTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.abTests[t.ID]; !ok {
		return ErrNotFound
	}
	t.UpdatedAt = m.now()
	cp := *t
	m.abTests[t.ID] = &cp
	return nil
}

func (m *Memory) Assign(_ context.Context, a models.ABTestAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.abTests[a.TestID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.feedback[a.FeedbackID]; !ok {
		return ErrNotFound
	}
	if m.assignments[a.TestID] == nil {
		m.assignments[a.TestID] = map[uint]string{}
	}
	m.assignments[a.TestID][a.FeedbackID] = a.Variant
	return nil
}

func (m *Memory) VariantFeedback(_ context.Context, testID uint, variant string) ([]models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uint
	for fid, v := range m.assignments[testID] {
		if v == variant {
			ids = append(ids, fid)
		}
	}
	return m.feedbackFor(ids, 0), nil
}

func (m *Memory) SaveEmbedding(_ context.Context, feedbackID uint, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vec))
	copy(cp, vec)
	m.embeddings[feedbackID] = cp
	return nil
}

// NearestFeedback ranks by cosine distance, matching the Postgres <=> operator.
func (m *Memory) NearestFeedback(_ context.Context, feedbackID uint, k int) ([]Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	self, ok := m.embeddings[feedbackID]
	if !ok {
		return nil, ErrNotFound
	}
	out := []Neighbor{}
	for id, vec := range m.embeddings {
		if id == feedbackID {
			continue
		}
		out = append(out, Neighbor{FeedbackID: id, Distance: cosineDistance(self, vec)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].FeedbackID < out[j].FeedbackID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
