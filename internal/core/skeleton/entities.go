package skeleton

import (
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/internal/core/world"
)

// AvatarEntity ties a loaded avatar tree and its bound bones to entity handles.
type AvatarEntity struct {
	ID    world.EntityID
	Model *scene.Node
	Bones map[Role]world.EntityID
}

// Bind attaches model under the world scene and allocates one entity for the
// avatar and one per bound bone.
func Bind(w *world.Context, model *scene.Node, sk *Skeleton) *AvatarEntity {
	w.Scene().Add(model)
	a := &AvatarEntity{
		ID:    w.CreateEntity(model),
		Model: model,
		Bones: make(map[Role]world.EntityID, sk.Len()),
	}
	for _, role := range sk.Bound() {
		a.Bones[role] = w.CreateEntity(sk.Bone(role))
	}
	return a
}

// Bone resolves a role through the world's entity table.
func (a *AvatarEntity) Bone(w *world.Context, role Role) *scene.Node {
	id, ok := a.Bones[role]
	if !ok {
		return nil
	}
	n, _ := w.Node(id)
	return n
}

// Release frees every entity and detaches the model from the scene.
func (a *AvatarEntity) Release(w *world.Context) {
	for role, id := range a.Bones {
		_ = w.DestroyEntity(id)
		delete(a.Bones, role)
	}
	_ = w.DestroyEntity(a.ID)
	a.ID = world.NoEntity
	a.Model.RemoveFromParent()
}
