package pools

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
)

// Buffer sizes for connection readers and writers
const (
	DefaultReaderSize = 4 * 1024
	DefaultWriterSize = 4 * 1024
)

// BufferPool recycles the bufio readers and writers wrapped around
// connections. A reader or writer must not be used after it is put back.
type BufferPool struct {
	readers sync.Pool
	writers sync.Pool

	// Statistics
	readerGets atomic.Uint64
	readerNews atomic.Uint64
	writerGets atomic.Uint64
	writerNews atomic.Uint64
}

// NewBufferPool creates a pool handing out readers and writers of the given
// sizes. Non-positive sizes fall back to the defaults.
func NewBufferPool(readerSize, writerSize int) *BufferPool {
	if readerSize <= 0 {
		readerSize = DefaultReaderSize
	}
	if writerSize <= 0 {
		writerSize = DefaultWriterSize
	}

	bp := &BufferPool{}
	bp.readers.New = func() any {
		bp.readerNews.Add(1)
		return bufio.NewReaderSize(nil, readerSize)
	}
	bp.writers.New = func() any {
		bp.writerNews.Add(1)
		return bufio.NewWriterSize(nil, writerSize)
	}
	return bp
}

// GetReader returns a reader reading from r
func (bp *BufferPool) GetReader(r io.Reader) *bufio.Reader {
	bp.readerGets.Add(1)
	br := bp.readers.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader returns a reader to the pool, dropping any buffered bytes
func (bp *BufferPool) PutReader(br *bufio.Reader) {
	if br == nil {
		return
	}
	br.Reset(nil)
	bp.readers.Put(br)
}

// GetWriter returns a writer writing to w
func (bp *BufferPool) GetWriter(w io.Writer) *bufio.Writer {
	bp.writerGets.Add(1)
	bw := bp.writers.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// PutWriter returns a writer to the pool. Unflushed bytes are discarded.
func (bp *BufferPool) PutWriter(bw *bufio.Writer) {
	if bw == nil {
		return
	}
	bw.Reset(nil)
	bp.writers.Put(bw)
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	return BufferStats{
		ReaderGets: bp.readerGets.Load(),
		ReaderNews: bp.readerNews.Load(),
		WriterGets: bp.writerGets.Load(),
		WriterNews: bp.writerNews.Load(),
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	ReaderGets uint64 `json:"reader_gets"`
	ReaderNews uint64 `json:"reader_news"`
	WriterGets uint64 `json:"writer_gets"`
	WriterNews uint64 `json:"writer_news"`
}

// HitRate is the share of gets served without allocating
func (s BufferStats) HitRate() float64 {
	gets := s.ReaderGets + s.WriterGets
	if gets == 0 {
		return 0
	}
	news := s.ReaderNews + s.WriterNews
	if news > gets {
		return 0
	}
	return float64(gets-news) / float64(gets)
}
