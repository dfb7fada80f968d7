package logging

// Per-category convenience helpers. These keep call sites terse:
//
//	logging.Council("session %s: consensus %s", id, decision)

func Council(format string, args ...interface{}) {
	Get(CategoryCouncil).Info(format, args...)
}

func CouncilDebug(format string, args ...interface{}) {
	Get(CategoryCouncil).Debug(format, args...)
}

func CouncilError(format string, args ...interface{}) {
	Get(CategoryCouncil).Error(format, args...)
}

func Agent(format string, args ...interface{}) {
	Get(CategoryAgent).Info(format, args...)
}

func AgentDebug(format string, args ...interface{}) {
	Get(CategoryAgent).Debug(format, args...)
}

func AgentError(format string, args ...interface{}) {
	Get(CategoryAgent).Error(format, args...)
}

func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

func Ledger(format string, args ...interface{}) {
	Get(CategoryLedger).Info(format, args...)
}

func LedgerDebug(format string, args ...interface{}) {
	Get(CategoryLedger).Debug(format, args...)
}

func Router(format string, args ...interface{}) {
	Get(CategoryRouter).Info(format, args...)
}

func Mediator(format string, args ...interface{}) {
	Get(CategoryMediator).Info(format, args...)
}

func MediatorError(format string, args ...interface{}) {
	Get(CategoryMediator).Error(format, args...)
}

func Memory(format string, args ...interface{}) {
	Get(CategoryMemory).Info(format, args...)
}

func Events(format string, args ...interface{}) {
	Get(CategoryEvents).Debug(format, args...)
}

func Kernel(format string, args ...interface{}) {
	Get(CategoryKernel).Info(format, args...)
}
