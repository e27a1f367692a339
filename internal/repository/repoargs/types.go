package repoargs

type RepositoryName string

const (
	AccountRepoName      RepositoryName = "account"
	TransactionRepoName  RepositoryName = "transaction"
	VideoRepoName        RepositoryName = "video"
	WatchRecordRepoName  RepositoryName = "watch_record"
	ProductRepoName      RepositoryName = "product"
	SubscriptionRepoName RepositoryName = "subscription"
	OrderRepoName        RepositoryName = "order"
)
