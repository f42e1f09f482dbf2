package taskgraph

// ActionFunc is the body of a stateless leaf. It is called once per tick
// while the leaf's node is current.
type ActionFunc func(tc *TaskContext, params Params) TaskStatus

type actionTask struct {
	NoAbort
	fn ActionFunc
}

func (t *actionTask) Execute(params Params) TaskStatus {
	return t.fn(&TaskContext{}, params)
}

func (t *actionTask) ExecuteWithContext(tc *TaskContext, params Params) TaskStatus {
	return t.fn(tc, params)
}

// Action returns a factory for leaves that run fn. Leaves built this way
// hold nothing across ticks, so they need no abort handling.
func Action(fn ActionFunc) TaskFactory {
	return func() AtomicTask { return &actionTask{fn: fn} }
}

// Predicate returns a factory for leaves that succeed when fn reports
// true and fail otherwise.
func Predicate(fn func(tc *TaskContext, params Params) bool) TaskFactory {
	return Action(func(tc *TaskContext, params Params) TaskStatus {
		if fn(tc, params) {
			return StatusSuccess
		}
		return StatusFailure
	})
}

// Succeed is a factory for leaves that always succeed.
var Succeed = Action(func(*TaskContext, Params) TaskStatus { return StatusSuccess })

// Fail is a factory for leaves that always fail.
var Fail = Action(func(*TaskContext, Params) TaskStatus { return StatusFailure })
