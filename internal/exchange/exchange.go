package exchange

import (
	"github.com/yuechangmingzou/hybrid-go/internal/config"
	"github.com/yuechangmingzou/hybrid-go/pkg/types"
)

// 编译时接口检查
var (
	_ types.Exchange = (*BinanceExchange)(nil)
	_ types.Exchange = (*PaperExchange)(nil)
)

// GetExchange 按运行模式选择交易所实现
func GetExchange() types.Exchange {
	if config.Get().DryRun {
		return GetPaperExchange()
	}
	return GetBinanceExchange()
}
