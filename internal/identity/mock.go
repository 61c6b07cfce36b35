package identity

// MockEncoder returns canned embeddings for tests.
type MockEncoder struct {
	embeddings map[string][]float32
	fallback   []float32
	err        error
}

func NewMockEncoder() *MockEncoder {
	return &MockEncoder{embeddings: make(map[string][]float32)}
}

// SetEmbedding maps a JPEG payload (compared as string) to an embedding.
func (m *MockEncoder) SetEmbedding(jpeg []byte, emb []float32) {
	m.embeddings[string(jpeg)] = emb
}

func (m *MockEncoder) SetFallback(emb []float32) { m.fallback = emb }

func (m *MockEncoder) SetError(err error) { m.err = err }

func (m *MockEncoder) Encode(jpeg []byte) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if emb, ok := m.embeddings[string(jpeg)]; ok {
		return emb, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return nil, ErrEncoderUnavailable
}
