package graph

import (
	"context"
	"sync"
)

// MemoryClient records queries and replays canned results. Writes, reads and transaction
// statements each have their own result queue; an empty queue yields an empty Result.
type MemoryClient struct {
	mu           sync.Mutex
	writeCalls   []ExecutedQuery
	readCalls    []ExecutedQuery
	txCalls      []ExecutedQuery
	readResults  []Result
	writeResults []Result
	txResults    []Result
	commits      int
	rollbacks    int
	err          error
	connectivity error
}

// ExecutedQuery captures a cypher statement and its parameters.
type ExecutedQuery struct {
	Query  string
	Params map[string]any
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// WithError makes every subsequent query fail with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return err.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

func (m *MemoryClient) PushReadResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, res)
}

func (m *MemoryClient) PushWriteResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeResults = append(m.writeResults, res)
}

// PushTxResult queues a result for the next statement run inside a transaction.
func (m *MemoryClient) PushTxResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txResults = append(m.txResults, res)
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.record(&m.writeCalls, &m.writeResults, cypher, params)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.record(&m.readCalls, &m.readResults, cypher, params)
}

func (m *MemoryClient) BeginWrite(context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &memoryTx{client: m}, nil
}

func (m *MemoryClient) record(calls *[]ExecutedQuery, results *[]Result, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}
	*calls = append(*calls, ExecutedQuery{Query: cypher, Params: cloneMap(params)})

	if len(*results) == 0 {
		return Result{}, nil
	}
	res := (*results)[0]
	*results = (*results)[1:]
	return res, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	return nil
}

func (m *MemoryClient) WriteCalls() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedQuery(nil), m.writeCalls...)
}

func (m *MemoryClient) ReadCalls() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedQuery(nil), m.readCalls...)
}

// TxCalls returns every statement run inside transactions, committed or not.
func (m *MemoryClient) TxCalls() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedQuery(nil), m.txCalls...)
}

// Commits reports how many transactions were committed.
func (m *MemoryClient) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Rollbacks reports how many transactions were rolled back.
func (m *MemoryClient) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

type memoryTx struct {
	client *MemoryClient
	closed bool
}

func (t *memoryTx) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	if t.closed {
		return Result{}, ErrTxClosed
	}
	return t.client.record(&t.client.txCalls, &t.client.txResults, cypher, params)
}

func (t *memoryTx) Commit(context.Context) error {
	return t.finish(&t.client.commits)
}

func (t *memoryTx) Rollback(context.Context) error {
	return t.finish(&t.client.rollbacks)
}

func (t *memoryTx) finish(counter *int) error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	t.client.mu.Lock()
	defer t.client.mu.Unlock()
	*counter++
	return nil
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
