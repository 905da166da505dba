package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRepo 让第一次 Append 停住，用来模拟 Gate 被占用。
type blockingRepo struct {
	Repo
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingRepo() *blockingRepo {
	return &blockingRepo{
		Repo:    NewMemoryRepo(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingRepo) Append(ctx context.Context, c Category, entry string) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.started)
		<-b.release
	}
	return b.Repo.Append(ctx, c, entry)
}

// failingRepo 模拟试算表无法访问。
type failingRepo struct {
	Repo
	readErr, writeErr error
}

func (f *failingRepo) ReadAll(ctx context.Context, c Category) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.Repo.ReadAll(ctx, c)
}

func (f *failingRepo) Append(ctx context.Context, c Category, entry string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Repo.Append(ctx, c, entry)
}

func (f *failingRepo) ReplaceAll(ctx context.Context, c Category, entries []string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Repo.ReplaceAll(ctx, c, entries)
}

func newTestService(repo Repo) *Service {
	return NewService(repo, quietLogger())
}

func TestTryAdd_EmptyCategoryAccepted(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())

	res, err := svc.TryAdd(ctx, War, "Alice", 3)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, "Alice(3)", res.Entry)

	rows, err := svc.List(ctx, War)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice(3)"}, rows)
}

func TestTryAdd_SameMemberDifferentCountRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, War, "Alice(3)"))
	svc := newTestService(repo)

	res, err := svc.TryAdd(ctx, War, "alice ", 2)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, res.Outcome)
	assert.True(t, res.Rejected())

	rows, _ := svc.List(ctx, War)
	assert.Equal(t, []string{"Alice(3)"}, rows)
}

func TestTryAdd_ConflictWithLeave(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, Leave, "Bob"))
	svc := newTestService(repo)

	res, err := svc.TryAdd(ctx, War, "Bob", 1)
	require.NoError(t, err)
	assert.Equal(t, ConflictInOtherCategory, res.Outcome)
	assert.Equal(t, Leave, res.Conflict)

	rows, _ := svc.List(ctx, War)
	assert.Empty(t, rows)
}

func TestTryAdd_LeaveConflictsWithCountedList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, Attack, "BOB(4)"))
	svc := newTestService(repo)

	res, err := svc.TryAdd(ctx, Leave, "bob", 1)
	require.NoError(t, err)
	assert.Equal(t, ConflictInOtherCategory, res.Outcome)
	assert.Equal(t, Attack, res.Conflict)
}

func TestTryAdd_LeaveStoresBareName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())

	// 请假只接受 +1
	for _, n := range []int{0, 2, 7} {
		res, err := svc.TryAdd(ctx, Leave, "Carol", n)
		require.NoError(t, err)
		assert.Equal(t, InvalidCount, res.Outcome, "count %d", n)
	}
	rows, _ := svc.List(ctx, Leave)
	assert.Empty(t, rows)

	res, err := svc.TryAdd(ctx, Leave, "Carol", 1)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, "Carol", res.Entry)

	res, err = svc.TryAdd(ctx, Leave, "CAROL", 1)
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, res.Outcome)
}

func TestTryAdd_CountRange(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())

	for _, n := range []int{0, -1, 13} {
		res, err := svc.TryAdd(ctx, War, "Dave", n)
		require.NoError(t, err)
		assert.Equal(t, InvalidCount, res.Outcome, "count %d", n)
	}
	for _, n := range []int{1, 12} {
		res, err := svc.TryAdd(ctx, War, fmt.Sprintf("Dave%d", n), n)
		require.NoError(t, err)
		assert.Equal(t, Accepted, res.Outcome, "count %d", n)
	}
	// 拒绝不会占用 Gate
	assert.Equal(t, int64(2), svc.Stats().Admitted)
}

func TestTryAdd_EmptyName(t *testing.T) {
	svc := newTestService(NewMemoryRepo())
	_, err := svc.TryAdd(context.Background(), War, "  ", 1)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestRemoveAll_RemovesEveryMatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, War, "Alice(3)"))
	svc := newTestService(repo)

	res, err := svc.RemoveAll(ctx, War, "Alice")
	require.NoError(t, err)
	assert.Equal(t, Removed, res.Outcome)
	assert.Equal(t, 1, res.Removed)

	rows, err := svc.List(ctx, War)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRemoveAll_KeepsOtherMembersInOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	for _, e := range []string{"Zed(1)", "alice(2)", "Amy(5)", " ALICE(4)", "Alicent(1)"} {
		require.NoError(t, repo.Append(ctx, War, e))
	}
	svc := newTestService(repo)

	res, err := svc.RemoveAll(ctx, War, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)

	rows, _ := svc.List(ctx, War)
	assert.Equal(t, []string{"Zed(1)", "Amy(5)", "Alicent(1)"}, rows)
}

func TestRemoveAll_NotFoundLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, Leave, "Dan"))
	// 写操作失败也没关系：未命中时不应写入
	svc := newTestService(&failingRepo{Repo: repo, writeErr: errors.New("must not write")})

	res, err := svc.RemoveAll(ctx, Leave, "Carol")
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Outcome)

	rows, _ := repo.ReadAll(ctx, Leave)
	assert.Equal(t, []string{"Dan"}, rows)
}

func TestRemoveAll_LeaveUsesExactMatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Append(ctx, Leave, "Bob"))
	require.NoError(t, repo.Append(ctx, Leave, "Bobby"))
	svc := newTestService(repo)

	res, err := svc.RemoveAll(ctx, Leave, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	rows, _ := svc.List(ctx, Leave)
	assert.Equal(t, []string{"Bobby"}, rows)
}

func TestCancelThenRejoinAnotherList(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())

	_, err := svc.TryAdd(ctx, Leave, "Eve", 1)
	require.NoError(t, err)
	res, _ := svc.TryAdd(ctx, War, "Eve", 2)
	assert.Equal(t, ConflictInOtherCategory, res.Outcome)

	_, err = svc.RemoveAll(ctx, Leave, "Eve")
	require.NoError(t, err)
	res, err = svc.TryAdd(ctx, War, "Eve", 2)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
}

func TestStoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("permission denied")

	svc := newTestService(&failingRepo{Repo: NewMemoryRepo(), readErr: boom})
	_, err := svc.TryAdd(ctx, War, "Frank", 1)
	assert.ErrorIs(t, err, boom)
	_, err = svc.RemoveAll(ctx, War, "Frank")
	assert.ErrorIs(t, err, boom)
	_, err = svc.ListAll(ctx)
	assert.ErrorIs(t, err, boom)

	svc = newTestService(&failingRepo{Repo: NewMemoryRepo(), writeErr: boom})
	_, err = svc.TryAdd(ctx, War, "Frank", 1)
	assert.ErrorIs(t, err, boom)

	// Gate 已释放
	stats := svc.Stats()
	assert.Equal(t, int64(0), stats.Dropped)
	_, err = svc.TryAdd(ctx, War, "Frank", 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), svc.Stats().Dropped)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())
	_, _ = svc.TryAdd(ctx, War, "A", 1)
	_, _ = svc.TryAdd(ctx, Attack, "B", 2)
	_, _ = svc.TryAdd(ctx, Leave, "C", 1)

	require.NoError(t, svc.ClearAll(ctx))
	l, err := svc.ListAll(ctx)
	require.NoError(t, err)
	for _, sec := range l.Sections {
		assert.Empty(t, sec.Entries, "category %s", sec.Category)
	}
}

func TestListAll_OrderAndIdempotence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())
	_, _ = svc.TryAdd(ctx, War, "A", 1)
	_, _ = svc.TryAdd(ctx, War, "B", 2)
	_, _ = svc.TryAdd(ctx, Leave, "C", 1)

	first, err := svc.ListAll(ctx)
	require.NoError(t, err)
	second, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first.Sections, 3)
	assert.Equal(t, War, first.Sections[0].Category)
	assert.Equal(t, []string{"A(1)", "B(2)"}, first.Entries(War))
	assert.Equal(t, []string{"C"}, first.Entries(Leave))
	assert.Empty(t, first.Entries(Attack))
}

// 被占用时的请求直接丢弃，最终状态只包含被准入的两次操作。
func TestTryAdd_DroppedWhileBusy(t *testing.T) {
	ctx := context.Background()
	repo := newBlockingRepo()
	svc := newTestService(repo)

	first := make(chan Result)
	go func() {
		res, err := svc.TryAdd(ctx, War, "Alice", 2)
		assert.NoError(t, err)
		first <- res
	}()
	<-repo.started

	_, err := svc.TryAdd(ctx, War, "Bob", 1)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = svc.RemoveAll(ctx, War, "Alice")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, svc.ClearAll(ctx), ErrBusy)

	close(repo.release)
	assert.Equal(t, Accepted, (<-first).Outcome)

	res, err := svc.TryAdd(ctx, War, "Carol", 4)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)

	rows, _ := svc.List(ctx, War)
	assert.Equal(t, []string{"Alice(2)", "Carol(4)"}, rows)
	assert.Equal(t, int64(3), svc.Stats().Dropped)
}

// 并发报名：成功数等于名单行数，且没有重复、没有跨名单。
func TestConcurrentAdds_NoDuplicatesOrLostRows(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())

	members := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	cats := []Category{War, Attack, Leave}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	start := make(chan struct{})
	for round := 0; round < 3; round++ {
		for i, m := range members {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				c := cats[(i+round)%len(cats)]
				n := 1 + i%MaxCount
				if c == Leave {
					n = 1
				}
				res, err := svc.TryAdd(ctx, c, m, n)
				if errors.Is(err, ErrBusy) {
					return
				}
				assert.NoError(t, err)
				if res.Outcome == Accepted {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
	}
	close(start)
	wg.Wait()

	l, err := svc.ListAll(ctx)
	require.NoError(t, err)

	total := 0
	seen := map[string]Category{}
	for _, sec := range l.Sections {
		keys := map[string]bool{}
		for _, e := range sec.Entries {
			k := NormalizeKey(baseName(e))
			assert.False(t, keys[k], "duplicate %q in %s", e, sec.Category)
			keys[k] = true
			if prev, ok := seen[k]; ok {
				t.Errorf("member %q in both %s and %s", k, prev, sec.Category)
			}
			seen[k] = sec.Category
			total++
		}
	}
	assert.Equal(t, accepted, total)
}

// 顺序执行任意报名/取消序列后，每个成员最多出现在一个名单中。
func TestSequence_MemberInAtMostOneList(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())
	members := []string{"Ann", "ann ", "Ben", "Cat"}
	cats := Categories()

	for i := 0; i < 60; i++ {
		m := members[i%len(members)]
		c := cats[(i*7)%len(cats)]
		if i%5 == 4 {
			_, err := svc.RemoveAll(ctx, c, m)
			require.NoError(t, err)
			continue
		}
		_, err := svc.TryAdd(ctx, c, m, 1+i%MaxCount)
		require.NoError(t, err)
	}

	l, err := svc.ListAll(ctx)
	require.NoError(t, err)
	for _, m := range members {
		hits := 0
		for _, sec := range l.Sections {
			for _, e := range sec.Entries {
				if sec.Category.Matches(e, m) {
					hits++
				}
			}
		}
		assert.LessOrEqual(t, hits, 1, "member %q", m)
	}
}

func TestOnChangeReceivesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())
	got := make(chan Listing, 4)
	svc.OnChange = func(l Listing) { got <- l }

	_, err := svc.TryAdd(ctx, War, "Gus", 2)
	require.NoError(t, err)

	select {
	case l := <-got:
		assert.Equal(t, []string{"Gus(2)"}, l.Entries(War))
	case <-time.After(time.Second):
		t.Fatal("expected a roster snapshot")
	}

	// 被拒绝的报名不推送
	_, _ = svc.TryAdd(ctx, War, "Gus", 1)
	select {
	case <-got:
		t.Fatal("rejected add must not publish")
	case <-time.After(50 * time.Millisecond):
	}
}

// staleReadRepo 在第一次 Append 之后，让下一次国战读取先拿到数据再停顿，
// 模拟较早的快照比较晚的快照更晚返回。
type staleReadRepo struct {
	Repo
	mu    sync.Mutex
	armed bool
	delay time.Duration
}

func (r *staleReadRepo) Append(ctx context.Context, c Category, entry string) error {
	if err := r.Repo.Append(ctx, c, entry); err != nil {
		return err
	}
	r.mu.Lock()
	if r.delay == 0 {
		r.armed = true
		r.delay = 200 * time.Millisecond
	}
	r.mu.Unlock()
	return nil
}

func (r *staleReadRepo) ReadAll(ctx context.Context, c Category) ([]string, error) {
	rows, err := r.Repo.ReadAll(ctx, c)
	r.mu.Lock()
	slow := r.armed && c == War
	if slow {
		r.armed = false
	}
	r.mu.Unlock()
	if slow {
		time.Sleep(r.delay)
	}
	return rows, err
}

func TestOnChange_LatestSnapshotWins(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&staleReadRepo{Repo: NewMemoryRepo()})

	var (
		mu       sync.Mutex
		versions []uint64
		last     Listing
	)
	svc.OnChange = func(l Listing) {
		mu.Lock()
		versions = append(versions, l.Version)
		last = l
		mu.Unlock()
	}

	res, err := svc.TryAdd(ctx, War, "A", 1)
	require.NoError(t, err)
	require.Equal(t, Accepted, res.Outcome)
	res, err = svc.TryAdd(ctx, War, "B", 1)
	require.NoError(t, err)
	require.Equal(t, Accepted, res.Outcome)

	want := []string{"A(1)", "B(1)"}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return assert.ObjectsAreEqual(want, last.Entries(War))
	}, 2*time.Second, 10*time.Millisecond)

	// 延迟的旧快照返回后不能覆盖新快照
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, last.Entries(War))
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestListAll_VersionTracksWrites(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryRepo())

	l, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, l.Version)

	_, _ = svc.TryAdd(ctx, War, "A", 1)
	_, _ = svc.TryAdd(ctx, War, "A", 2) // 拒绝，不算写入
	_, _ = svc.RemoveAll(ctx, War, "A")
	require.NoError(t, svc.ClearAll(ctx))

	l, err = svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), l.Version)
}
