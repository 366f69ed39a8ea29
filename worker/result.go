package worker

// Result is the sum type returned by Worker.Process, replacing
// exception-subclass dispatch with an explicit, switchable value. Retry
// decisions consult the concrete type, never an error's identity.
type Result interface {
	isResult()
	ChunkID() int
}

type base struct {
	chunkID int
}

func (b base) ChunkID() int { return b.chunkID }

// SuccessResult carries the accepted sentences and token usage for a
// chunk that completed the full pipeline.
type SuccessResult struct {
	base
	Sentences []string
	Tokens    int64
}

func (SuccessResult) isResult() {}

// TransientFailureResult means the chunk may still succeed on a later
// attempt (network timeout, 5xx, rate limit, or an explicit retryable
// marker from the LLM capability). Attempt is the attempts count at the
// time of this failure, used to compute the in-worker retry backoff.
type TransientFailureResult struct {
	base
	Code    string
	Attempt int
	Err     error
}

func (TransientFailureResult) isResult() {}

// PermanentFailureResult means no further automatic retry applies at the
// worker level (decode/parse/permission errors, empty text, cancellation).
type PermanentFailureResult struct {
	base
	Code string
	Err  error
}

func (PermanentFailureResult) isResult() {}

func success(chunkID int, sentences []string, tokens int64) Result {
	return SuccessResult{base: base{chunkID}, Sentences: sentences, Tokens: tokens}
}

func transient(chunkID int, code string, attempt int, err error) Result {
	return TransientFailureResult{base: base{chunkID}, Code: code, Attempt: attempt, Err: err}
}

func permanent(chunkID int, code string, err error) Result {
	return PermanentFailureResult{base: base{chunkID}, Code: code, Err: err}
}
