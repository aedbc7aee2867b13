package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ TransactionCoordinator   = (*Service)(nil)
	_ AccountService           = (*Service)(nil)
	_ EvictingTransactionStore = (*MemoryTransactionStore)(nil)
	_ CredentialHasher         = PBKDF2Hasher{}
	_ CredentialHasher         = BcryptHasher{}
	_ ProfileReader            = directoryProfileReader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
