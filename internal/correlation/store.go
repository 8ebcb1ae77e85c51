package correlation

import "sync"

// Store 按请求 URL 关联用户下载意图与后续网络响应。
// 同一 URL 同一时刻至多持有 forceDownload 与 suppressOnce 之一，
// 两类条目均为一次性：被对应响应消费后即删除。
type Store struct {
	mu            sync.Mutex
	forceDownload map[string]string
	suppressOnce  map[string]struct{}
}

// NewStore 创建关联状态存储
func NewStore() *Store {
	return &Store{
		forceDownload: make(map[string]string),
		suppressOnce:  make(map[string]struct{}),
	}
}

// RecordForceDownload 登记强制下载意图，URL 已有任一意图时不覆盖
func (s *Store) RecordForceDownload(url, filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingLocked(url) {
		return false
	}
	s.forceDownload[url] = filename
	return true
}

// RecordSuppressOnce 登记一次性抑制标记，URL 已有任一意图时不覆盖
func (s *Store) RecordSuppressOnce(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingLocked(url) {
		return false
	}
	s.suppressOnce[url] = struct{}{}
	return true
}

// TakeForceDownload 取出并删除强制下载条目
func (s *Store) TakeForceDownload(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filename, ok := s.forceDownload[url]
	if ok {
		delete(s.forceDownload, url)
	}
	return filename, ok
}

// TakeSuppressOnce 取出并删除抑制标记
func (s *Store) TakeSuppressOnce(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.suppressOnce[url]
	if ok {
		delete(s.suppressOnce, url)
	}
	return ok
}

// Pending 判断 URL 是否有待消费的意图
func (s *Store) Pending(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked(url)
}

// HasForceDownload 判断 URL 是否有待消费的强制下载条目
func (s *Store) HasForceDownload(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.forceDownload[url]
	return ok
}

// Migrate 将 oldURL 的条目原样迁移到 newURL，无条目时为空操作。
// 重定向链上旧 URL 的残留条目必须清除，否则会误伤复用同一 URL 的后续请求。
func (s *Store) Migrate(oldURL, newURL string) {
	if oldURL == newURL {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if filename, ok := s.forceDownload[oldURL]; ok {
		delete(s.forceDownload, oldURL)
		s.forceDownload[newURL] = filename
		return
	}
	if _, ok := s.suppressOnce[oldURL]; ok {
		delete(s.suppressOnce, oldURL)
		s.suppressOnce[newURL] = struct{}{}
	}
}

func (s *Store) pendingLocked(url string) bool {
	if _, ok := s.forceDownload[url]; ok {
		return true
	}
	_, ok := s.suppressOnce[url]
	return ok
}
