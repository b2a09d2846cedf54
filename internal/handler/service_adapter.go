package handler

import (
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/auth"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/billing"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/content"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/progress"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/study"
)

// ドメインサービスがハンドラーのインターフェースを満たすことをコンパイル時に検証する。
// シグネチャの変更はここでビルドエラーとして検出される。

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ ContentServiceInterface = (*content.Service)(nil)
var _ StudyServiceInterface = (*study.Service)(nil)
var _ ProgressServiceInterface = (*progress.Service)(nil)
var _ BillingServiceInterface = (*billing.Service)(nil)
