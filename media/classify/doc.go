// 版权所有 2024 MediaFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 classify 按模型给出的描述与分类整理本地媒体文件。

图片（.jpg .jpeg .png .gif .bmp .webp）使用视觉模型生成名称与自由分类标签；
文本（.txt .md）使用文本模型，分类限定为 documents、notes、code、creative、
data、communication、misc，词表外的结果一律归为 misc。文件被移动到
<root>/<category>/<name><ext>，同名时依次尝试 <name>_1、<name>_2…

所有模型调用都是尽力而为：失败时分类回退为 misc，名称回退为原文件名，
文件仍会被整理。
*/
package classify
