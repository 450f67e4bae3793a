package pool

import (
	"bytes"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"
)

// Буферы больше этого размера не возвращаются в пул
const maxPooledBuffer = 64 * 1024

// ObjectPools содержит пулы объектов для переиспользования при кодировании кадров
type ObjectPools struct {
	bufferPool sync.Pool
	structPool sync.Pool
}

// Global пулы объектов
var Global = &ObjectPools{
	bufferPool: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 1024))
		},
	},
	structPool: sync.Pool{
		New: func() interface{} {
			return &structpb.Struct{}
		},
	},
}

// GetBuffer возвращает пустой буфер
func (p *ObjectPools) GetBuffer() *bytes.Buffer {
	buf := p.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer возвращает буфер в пул
func (p *ObjectPools) PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	p.bufferPool.Put(buf)
}

// GetStruct возвращает пустое protobuf-сообщение Struct
func (p *ObjectPools) GetStruct() *structpb.Struct {
	s := p.structPool.Get().(*structpb.Struct)
	s.Reset()
	return s
}

// PutStruct возвращает Struct в пул
func (p *ObjectPools) PutStruct(s *structpb.Struct) {
	if s == nil {
		return
	}
	p.structPool.Put(s)
}
