package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/storage/xcache"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xperm"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xview"
)

// =============================================================================
// 模型
// =============================================================================

// Note 是示例笔记资源。
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// noteInput 是创建/更新笔记的请求体。
type noteInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// maxTitleLen 标题长度上限（字节）。
const maxTitleLen = 200

// validate 校验输入，返回带字段级错误的 400。
func (in noteInput) validate() error {
	fields := make(map[string][]string)
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = append(fields["title"], "This field is required.")
	} else if len(in.Title) > maxTitleLen {
		fields["title"] = append(fields["title"],
			fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLen))
	}
	if len(fields) > 0 {
		return xerror.NewValidationError().WithFields(fields)
	}
	return nil
}

// =============================================================================
// 存储
// =============================================================================

const (
	// notePrefix 单条笔记的键前缀，后接笔记 ID。
	notePrefix = "note:"
	// noteIndexKey 全量 ID 索引键，维持列表顺序。
	noteIndexKey = "notes:all"
	// noteLockName 索引读改写使用的分布式锁名。
	noteLockName = "notes-index"
	// noteLockTTL 锁的自动过期时间，持有者异常退出后的最长占用时长。
	noteLockTTL = 3 * time.Second
	// indexLockAttempts 抢锁的最大尝试次数。
	indexLockAttempts = 10
	// indexLockRetryDelay 抢锁失败后的固定重试间隔。
	indexLockRetryDelay = 50 * time.Millisecond
)

// errNoteNotFound 表示目标笔记不存在。
var errNoteNotFound = errors.New("note not found")

// noteStore 把笔记完整存在缓存里: 每条笔记一个键，外加一个有序 ID 索引。
// 索引的读改写在分布式锁内进行，避免并发创建/删除互相覆盖。
type noteStore struct {
	cache xcache.Cache
}

func newNoteStore(cache xcache.Cache) *noteStore {
	return &noteStore{cache: cache}
}

func noteKey(id string) string { return notePrefix + id }

// List 按索引顺序返回全部笔记。
func (s *noteStore) List(ctx context.Context) ([]Note, error) {
	ids, err := s.indexIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Note{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = noteKey(id)
	}
	raw, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	notes := make([]Note, 0, len(ids))
	for _, id := range ids {
		// 索引里可能残留已删除的 ID，跳过即可，下次索引更新时自然收敛
		data, ok := raw[noteKey(id)]
		if !ok {
			continue
		}
		var note Note
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, fmt.Errorf("decode note %s: %w", id, err)
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// Get 返回指定笔记，不存在时返回 errNoteNotFound。
func (s *noteStore) Get(ctx context.Context, id string) (*Note, error) {
	var note Note
	err := s.cache.Get(ctx, noteKey(id), &note)
	if errors.Is(err, xcache.ErrCacheMiss) {
		return nil, errNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	return &note, nil
}

// Create 保存新笔记并登记到索引。
func (s *noteStore) Create(ctx context.Context, in noteInput, author *xctx.Principal) (*Note, error) {
	now := time.Now().UTC()
	note := &Note{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if author != nil && !author.IsAnonymous() {
		note.Author = author.ID
	}

	if err := s.cache.Set(ctx, noteKey(note.ID), note, xcache.NoExpiry); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	if err := s.updateIndex(ctx, func(ids []string) []string {
		return append(ids, note.ID)
	}); err != nil {
		return nil, err
	}
	return note, nil
}

// Update 整体替换笔记内容，保留创建信息。
// 笔记本体的读改写未加锁，并发更新按写入先后取最后一次。
func (s *noteStore) Update(ctx context.Context, id string, in noteInput) (*Note, error) {
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	note.Title = strings.TrimSpace(in.Title)
	note.Body = in.Body
	note.UpdatedAt = time.Now().UTC()
	if err := s.cache.Set(ctx, noteKey(id), note, xcache.NoExpiry); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	return note, nil
}

// Delete 删除笔记并将其移出索引。
func (s *noteStore) Delete(ctx context.Context, id string) error {
	existed, err := s.cache.Delete(ctx, noteKey(id))
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if !existed {
		return errNoteNotFound
	}
	return s.updateIndex(ctx, func(ids []string) []string {
		next := make([]string, 0, len(ids))
		for _, x := range ids {
			if x != id {
				next = append(next, x)
			}
		}
		return next
	})
}

// Count 返回索引中的笔记数量。
func (s *noteStore) Count(ctx context.Context) (int, error) {
	ids, err := s.indexIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// indexIDs 读取 ID 索引，索引不存在视为空列表。
func (s *noteStore) indexIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.cache.Get(ctx, noteIndexKey, &ids)
	if errors.Is(err, xcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load note index: %w", err)
	}
	return ids, nil
}

// updateIndex 在分布式锁内对索引做读改写。
// 锁是非阻塞获取，短暂的抢锁冲突用固定间隔重试吸收；
// 只有 ErrLockHeld 触发重试，读写失败直接向上返回。
func (s *noteStore) updateIndex(ctx context.Context, mutate func(ids []string) []string) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(indexLockAttempts),
		retry.Delay(indexLockRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, xcache.ErrLockHeld)
		}),
	).Do(func() error {
		unlock, err := s.cache.Lock(ctx, noteLockName, noteLockTTL)
		if err != nil {
			return err
		}
		// 锁过期被抢走时 unlock 返回 ErrLockExpired，
		// 此时索引写入已完成，不再回滚
		defer func() { _ = unlock(ctx) }()

		ids, err := s.indexIDs(ctx)
		if err != nil {
			return err
		}
		if err := s.cache.Set(ctx, noteIndexKey, mutate(ids), xcache.NoExpiry); err != nil {
			return fmt.Errorf("save note index: %w", err)
		}
		return nil
	})
}

// =============================================================================
// 视图
// =============================================================================

// newNotesView 创建列表视图: GET 列出全部，POST 创建。
func newNotesView(store *noteStore, d viewDeps) *xview.View {
	opts := append(d.commonOptions(),
		xview.WithName("note-list"),
		xview.WithDescription("List notes or create a new one."),
		xview.WithPermissions(xperm.IsAuthenticatedOrReadOnly{}),
		xview.WithGet(listNotes(store)),
		xview.WithPost(createNote(store)),
	)
	return xview.New(opts...)
}

// newNoteDetailView 创建单条视图: GET 查看，PUT 更新，DELETE 删除。
func newNoteDetailView(store *noteStore, d viewDeps) *xview.View {
	opts := append(d.commonOptions(),
		xview.WithName("note-detail"),
		xview.WithDescription("Retrieve, update or delete a note."),
		xview.WithPermissions(xperm.IsAuthenticatedOrReadOnly{}),
		xview.WithGet(getNote(store)),
		xview.WithPut(updateNote(store)),
		xview.WithDelete(deleteNote(store)),
	)
	return xview.New(opts...)
}

func listNotes(store *noteStore) xview.HandlerFunc {
	return func(r *xrequest.Request) (*xrender.Response, error) {
		notes, err := store.List(r.Context())
		if err != nil {
			return nil, err
		}
		return xrender.OK(notes), nil
	}
}

func createNote(store *noteStore) xview.HandlerFunc {
	return func(r *xrequest.Request) (*xrender.Response, error) {
		var in noteInput
		if err := r.Data(&in); err != nil {
			return nil, err
		}
		if err := in.validate(); err != nil {
			return nil, err
		}
		principal, err := r.Principal()
		if err != nil {
			return nil, err
		}
		note, err := store.Create(r.Context(), in, principal)
		if err != nil {
			return nil, err
		}
		resp := xrender.Created(note)
		resp.SetHeader("Location", "/notes/"+note.ID)
		return resp, nil
	}
}

func getNote(store *noteStore) xview.HandlerFunc {
	return func(r *xrequest.Request) (*xrender.Response, error) {
		note, err := store.Get(r.Context(), pathID(r))
		if errors.Is(err, errNoteNotFound) {
			return nil, xerror.NewNotFound()
		}
		if err != nil {
			return nil, err
		}
		return xrender.OK(note), nil
	}
}

func updateNote(store *noteStore) xview.HandlerFunc {
	return func(r *xrequest.Request) (*xrender.Response, error) {
		var in noteInput
		if err := r.Data(&in); err != nil {
			return nil, err
		}
		if err := in.validate(); err != nil {
			return nil, err
		}
		note, err := store.Update(r.Context(), pathID(r), in)
		if errors.Is(err, errNoteNotFound) {
			return nil, xerror.NewNotFound()
		}
		if err != nil {
			return nil, err
		}
		return xrender.OK(note), nil
	}
}

func deleteNote(store *noteStore) xview.HandlerFunc {
	return func(r *xrequest.Request) (*xrender.Response, error) {
		err := store.Delete(r.Context(), pathID(r))
		if errors.Is(err, errNoteNotFound) {
			return nil, xerror.NewNotFound()
		}
		if err != nil {
			return nil, err
		}
		return xrender.NoContent(), nil
	}
}

// pathID 取路由模式 /notes/{id} 中的 ID 段。
func pathID(r *xrequest.Request) string {
	return r.Raw().PathValue("id")
}
