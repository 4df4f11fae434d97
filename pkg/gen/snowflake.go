package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen",
	fx.Provide(ProvideNode),
)

// ProvideNode returns the process-wide snowflake node. Node ID is fixed at 1;
// multi-instance deployments should derive it from the environment.
func ProvideNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
