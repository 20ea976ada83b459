package taskname

const (
	// Distribution tasks
	DistributionSettleDay = "distribution:settle_day"
)
