package workerpool

type Option func(*Pool)

func Workers(n int) Option {
	return func(p *Pool) {
		p.workers = n
	}
}

func QueueDepth(n int) Option {
	return func(p *Pool) {
		p.queueDepth = n
	}
}
