package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// DefaultReloadDebounce 文件变更合并窗口
const DefaultReloadDebounce = 500 * time.Millisecond

// FileWatcher 监听公共 Skills 目录，变更合并后回调一次
type FileWatcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(dir string, debounce time.Duration, onChange func()) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &FileWatcher{
		dir:      filepath.Clean(dir),
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start 启动监听
func (w *FileWatcher) Start() error {
	if err := w.addTree(w.dir); err != nil {
		w.watcher.Close()
		return err
	}
	w.started = true
	go w.loop()
	klog.V(6).Infof("开始监听 Skills 目录: %s", w.dir)
	return nil
}

// Stop 停止监听
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		if w.started {
			<-w.done
		}

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *FileWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			klog.Warningf("Skills 目录监听错误: %v", err)
		}
	}
}

func (w *FileWatcher) handle(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				klog.Warningf("监听新目录失败: dir=%s, error=%v", event.Name, err)
			}
		}
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		klog.V(6).Infof("Skills 文件变更: op=%s, path=%s", event.Op, event.Name)
		w.schedule()
	}
}

// schedule 合并窗口内的多次变更只触发一次回调
func (w *FileWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stop:
			return
		default:
		}
		w.onChange()
	})
}

// addTree 监听目录及其子目录（skill 目录和 guidelines 目录）
func (w *FileWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			klog.Warningf("监听目录失败: dir=%s, error=%v", path, err)
		}
		return nil
	})
}
