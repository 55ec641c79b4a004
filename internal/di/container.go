// internal/di/container.go
package di

import (
	"sync"
)

// Container is a minimal dependency injection container.
type Container struct {
	services map[string]interface{}
	mutex    sync.RWMutex
}

// Global container instance
var (
	globalContainer *Container
	once            sync.Once
)

// NewContainer creates an empty container.
func NewContainer() *Container {
	container := &Container{
		services: make(map[string]interface{}),
	}

	return container
}

// GetContainer returns the global container instance.
func GetContainer() *Container {
	if globalContainer == nil {
		once.Do(func() {
			globalContainer = NewContainer()
		})
	}
	return globalContainer
}

// Register stores a service instance under a name.
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.services[name] = service
}

// Get returns a registered service or nil.
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	service, exists := c.services[name]
	if !exists {
		return nil
	}

	return service
}

// GetTyped returns the service or the given default when missing.
func (c *Container) GetTyped(name string, defaultVal interface{}) interface{} {
	service := c.Get(name)
	if service == nil {
		return defaultVal
	}
	return service
}

// Has reports whether a service is registered.
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.services[name]
	return exists
}

// Remove drops a service from the container.
func (c *Container) Remove(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.services, name)
}

// Clear removes every registered service.
func (c *Container) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.services = make(map[string]interface{})
}

// GetNames lists the registered service names.
func (c *Container) GetNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}

	return names
}
