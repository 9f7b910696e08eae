package credential

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrHasherClosed = errors.New("hasher is closed")

type hashJob struct {
	run  func()
	done chan struct{}
}

// Hasher 在固定数量的 worker goroutine 上执行 bcrypt 运算，避免慢哈希占用请求处理的 goroutine
type Hasher struct {
	cost int
	jobs chan hashJob
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewHasher(workers int, cost int) *Hasher {
	if workers <= 0 {
		workers = 1
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	h := &Hasher{
		cost: cost,
		jobs: make(chan hashJob),
		quit: make(chan struct{}),
	}

	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.quit:
					return
				case job := <-h.jobs:
					job.run()
					close(job.done)
				}
			}
		}()
	}

	return h
}

func (h *Hasher) submit(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	job := hashJob{run: fn, done: make(chan struct{})}

	select {
	case <-h.quit:
		return ErrHasherClosed
	case <-ctx.Done():
		return ctx.Err()
	case h.jobs <- job:
	}

	// 任务一旦被 worker 接收就一定会执行完毕
	<-job.done
	return nil
}

func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	var (
		hash []byte
		err  error
	)
	if subErr := h.submit(ctx, func() {
		hash, err = bcrypt.GenerateFromPassword([]byte(password), h.cost)
	}); subErr != nil {
		return "", subErr
	}
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Compare 比较明文和哈希，只有在哈希本身无法解析时才返回错误
func (h *Hasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	var err error
	if subErr := h.submit(ctx, func() {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	}); subErr != nil {
		return false, subErr
	}

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func (h *Hasher) Close() {
	h.once.Do(func() {
		close(h.quit)
	})
	h.wg.Wait()
}
