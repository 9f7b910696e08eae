package handler

type ContextKey string

var (
	UserInfoCtx ContextKey = "userInfo"
	ContractCtx ContextKey = "contract"
)
