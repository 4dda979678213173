package gpu

import "errors"

// hostStorage is the CPU copy behind a vertex or index buffer. Lock hands
// out a view of it, Unlock flushes it to the GPU buffer, and the copy is
// kept so the buffer can be re-uploaded after a context restore.
type hostStorage struct {
	buf      *Buffer
	data     []byte
	locked   bool
	gen      uint64
	uploaded bool
	reupload bool
}

func newHostStorage(buf *Buffer) hostStorage {
	return hostStorage{buf: buf, data: make([]byte, buf.Size()), gen: 1}
}

func (s *hostStorage) viewGeneration() uint64 { return s.gen }

func (s *hostStorage) lock() (*BufferView, error) {
	if s.buf.Destroyed() {
		return nil, ErrDestroyed
	}
	if s.locked {
		return nil, ErrAlreadyLocked
	}
	s.locked = true
	return newBufferView(s, 0, s.data), nil
}

// unlock invalidates outstanding views and uploads the host copy. The lock
// is released even when the upload fails.
func (s *hostStorage) unlock() error {
	if !s.locked {
		return ErrNotLocked
	}
	s.locked = false
	s.gen++
	if err := s.upload(); err != nil {
		if errors.Is(err, ErrContextLost) {
			s.reupload = true
		}
		return err
	}
	s.reupload = false
	return nil
}

func (s *hostStorage) write(offset uint64, data []byte) error {
	if s.buf.Destroyed() {
		return ErrDestroyed
	}
	if s.locked {
		return ErrAlreadyLocked
	}
	if s.reupload && !s.buf.Device().Lost() {
		if offset > uint64(len(s.data)) || uint64(len(data)) > uint64(len(s.data))-offset {
			return s.buf.Write(offset, data)
		}
		copy(s.data[offset:], data)
		if err := s.upload(); err != nil {
			return err
		}
		s.reupload = false
		return nil
	}
	if err := s.buf.Write(offset, data); err != nil {
		return err
	}
	copy(s.data[offset:], data)
	s.uploaded = true
	return nil
}

func (s *hostStorage) upload() error {
	if err := s.buf.Write(0, s.data); err != nil {
		return err
	}
	s.uploaded = true
	return nil
}

// loseContext resets cached GPU state. Any lock is dropped and its views
// go stale. On a live device the native buffer is destroyed here, and the
// host copy goes back to the GPU with the next write or unlock.
func (s *hostStorage) loseContext() {
	if s.buf.Device().Lost() {
		s.buf.loseContext()
	} else {
		s.buf.discard()
	}
	s.reupload = s.reupload || s.uploaded
	s.uploaded = false
	s.locked = false
	s.gen++
}

// restore re-uploads content that was on the GPU before the loss.
func (s *hostStorage) restore() error {
	if s.buf.Destroyed() || !s.reupload {
		return nil
	}
	if err := s.upload(); err != nil {
		return err
	}
	s.reupload = false
	return nil
}

func (s *hostStorage) destroy() {
	s.buf.Destroy()
	s.locked = false
	s.gen++
	s.data = nil
}
