package todos

import (
	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/cache"
)

var (
	// RootKey covers every list and count; mutations invalidate it.
	RootKey    = cache.Key{"todos"}
	listRoot   = RootKey.Append("list")
	countRoot  = RootKey.Append("count")
	detailRoot = cache.Key{"todo"}
)

func ListKey(p client.ListParams) cache.Key { return listRoot.Append(p.Key()) }

func CountKey(p client.CountParams) cache.Key { return countRoot.Append(p.Key()) }

func DetailKey(id string) cache.Key { return detailRoot.Append(id) }
